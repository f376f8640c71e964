package artist

import (
	"github.com/soundrift/soundrift/internal/artist/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("artist",
	fx.Provide(repository.Provide),
)
