package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	artistdomain "github.com/soundrift/soundrift/internal/artist/domain"
	artistrepository "github.com/soundrift/soundrift/internal/artist/repository"
	"github.com/soundrift/soundrift/internal/clock"
	identitydomain "github.com/soundrift/soundrift/internal/identity/domain"
	identityrepository "github.com/soundrift/soundrift/internal/identity/repository"
	"github.com/soundrift/soundrift/internal/invite/domain"
	inviterepository "github.com/soundrift/soundrift/internal/invite/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupInviteService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = conn.Exec("PRAGMA busy_timeout = 5000").Error

	if err := conn.AutoMigrate(
		&identitydomain.User{},
		&domain.Invite{},
		&artistdomain.Profile{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:      conn,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fake,
		Repo:    inviterepository.Provide(),
		Users:   identityrepository.Provide(),
		Artists: artistrepository.Provide(),
	})

	return svc, conn, fake, node
}

func seedUser(t *testing.T, conn *gorm.DB, node *snowflake.Node, email string, role identitydomain.Role) identitydomain.User {
	t.Helper()

	user := identitydomain.User{
		ID:          node.Generate(),
		Email:       strings.ToLower(email),
		DisplayName: strings.Split(email, "@")[0],
		Role:        role,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

func asActor(user identitydomain.User) domain.Actor {
	return domain.Actor{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	}
}

func loadInvite(t *testing.T, conn *gorm.DB, id string) domain.Invite {
	t.Helper()

	var invite domain.Invite
	if err := conn.Where("id = ?", id).First(&invite).Error; err != nil {
		t.Fatalf("load invite %s: %v", id, err)
	}
	return invite
}

func TestCreateGeneratesWellFormedUniqueCodes(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		resp, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		if len(resp.Code) != domain.CodeLength {
			t.Fatalf("code %q has length %d", resp.Code, len(resp.Code))
		}
		for _, r := range resp.Code {
			if !strings.ContainsRune(domain.CodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", resp.Code, r)
			}
		}
		if seen[resp.Code] {
			t.Fatalf("duplicate code issued: %s", resp.Code)
		}
		seen[resp.Code] = true
	}
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	svc, conn, fake, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "listener@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	resp, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if want := fake.Now().Add(domain.DefaultTTL); !resp.ExpiresAt.Equal(want) {
		t.Fatalf("expected default expiry %v, got %v", want, resp.ExpiresAt)
	}
	if resp.Status != "pending" {
		t.Fatalf("expected pending status, got %s", resp.Status)
	}

	if _, err := svc.Create(ctx, asActor(fan), domain.CreateRequest{Kind: domain.KindArtist}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied for fan issuer, got %v", err)
	}

	if _, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: "VIP"}); !errors.Is(err, domain.ErrInvalidKind) {
		t.Fatalf("expected invalid kind, got %v", err)
	}

	bad := "not-an-email"
	if _, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist, RestrictedEmail: &bad}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}

	past := fake.Now().Add(-time.Hour)
	if _, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist, ExpiresAt: &past}); !errors.Is(err, domain.ErrInvalidExpiry) {
		t.Fatalf("expected invalid expiry, got %v", err)
	}
}

func TestRedeemGrantsRoleAndCreatesProfile(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "new.artist@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.Redeem(ctx, created.Code, asActor(fan))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.GrantedRole != identitydomain.RoleArtist {
		t.Fatalf("expected artist role, got %s", result.GrantedRole)
	}
	if !result.ProfileCreated {
		t.Fatal("expected a new artist profile")
	}
	if result.Invite.RedeemedBy == nil || *result.Invite.RedeemedBy != fan.ID.String() {
		t.Fatalf("expected redeemed_by %s, got %v", fan.ID, result.Invite.RedeemedBy)
	}

	var user identitydomain.User
	if err := conn.First(&user, "id = ?", fan.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Role != identitydomain.RoleArtist {
		t.Fatalf("expected stored role artist, got %s", user.Role)
	}

	var profiles int64
	if err := conn.Model(&artistdomain.Profile{}).Where("user_id = ?", fan.ID).Count(&profiles).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if profiles != 1 {
		t.Fatalf("expected 1 profile, got %d", profiles)
	}

	stored := loadInvite(t, conn, created.ID)
	if stored.RedeemedBy == nil || *stored.RedeemedBy != fan.ID {
		t.Fatal("redemption was not persisted")
	}

	// The invite is terminal now.
	other := seedUser(t, conn, node, "late@example.com", identitydomain.RoleFan)
	if _, err := svc.Redeem(ctx, created.Code, asActor(other)); !errors.Is(err, domain.ErrAlreadyUsed) {
		t.Fatalf("expected already used, got %v", err)
	}
}

func TestRedeemAdminKindSkipsProfile(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "promoted@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindAdmin})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.Redeem(ctx, created.Code, asActor(fan))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.GrantedRole != identitydomain.RoleAdmin {
		t.Fatalf("expected admin role, got %s", result.GrantedRole)
	}
	if result.ProfileCreated {
		t.Fatal("admin invite must not create an artist profile")
	}
}

func TestRedeemExistingArtistKeepsProfile(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	artist := seedUser(t, conn, node, "established@example.com", identitydomain.RoleArtist)
	ctx := context.Background()

	existing := artistdomain.Profile{
		ID:          node.Generate(),
		UserID:      artist.ID,
		DisplayName: "Established",
		Slug:        "established",
	}
	if err := conn.Create(&existing).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindCreator})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.Redeem(ctx, created.Code, asActor(artist))
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if result.ProfileCreated {
		t.Fatal("existing profile must be left untouched")
	}
	if result.GrantedRole != identitydomain.RoleArtist {
		t.Fatalf("expected artist role, got %s", result.GrantedRole)
	}

	var profiles int64
	if err := conn.Model(&artistdomain.Profile{}).Where("user_id = ?", artist.ID).Count(&profiles).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if profiles != 1 {
		t.Fatalf("expected 1 profile, got %d", profiles)
	}
}

func TestRedeemExpiredLeavesInviteUntouched(t *testing.T) {
	svc, conn, fake, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "slow@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	fake.Advance(domain.DefaultTTL + time.Minute)

	if _, err := svc.Redeem(ctx, created.Code, asActor(fan)); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	// The failed attempt must not leave partial state behind.
	stored := loadInvite(t, conn, created.ID)
	if stored.RedeemedBy != nil || !stored.Active {
		t.Fatal("expired redemption mutated the invite")
	}
	var user identitydomain.User
	if err := conn.First(&user, "id = ?", fan.ID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Role != identitydomain.RoleFan {
		t.Fatalf("expired redemption changed the role to %s", user.Role)
	}
}

func TestRedeemCheckOrder(t *testing.T) {
	svc, conn, fake, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "someone@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	restricted := "vip@example.com"
	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{
		Kind:            domain.KindArtist,
		RestrictedEmail: &restricted,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Deactivate(ctx, asActor(admin), created.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	fake.Advance(domain.DefaultTTL + time.Hour)

	// Deactivated wins over expired, which wins over the email mismatch.
	if _, err := svc.Redeem(ctx, created.Code, asActor(fan)); !errors.Is(err, domain.ErrDeactivated) {
		t.Fatalf("expected deactivated, got %v", err)
	}

	expired, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{
		Kind:            domain.KindArtist,
		RestrictedEmail: &restricted,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	fake.Advance(domain.DefaultTTL + time.Hour)
	if _, err := svc.Redeem(ctx, expired.Code, asActor(fan)); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired before email mismatch, got %v", err)
	}
}

func TestRedeemEmailRestriction(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	wrong := seedUser(t, conn, node, "wrong@example.com", identitydomain.RoleFan)
	right := seedUser(t, conn, node, "invited@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	restricted := "Invited@Example.com"
	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{
		Kind:            domain.KindArtist,
		RestrictedEmail: &restricted,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Redeem(ctx, created.Code, asActor(wrong)); !errors.Is(err, domain.ErrEmailMismatch) {
		t.Fatalf("expected email mismatch, got %v", err)
	}

	// Comparison is case-insensitive on the normalized address.
	if _, err := svc.Redeem(ctx, created.Code, asActor(right)); err != nil {
		t.Fatalf("redeem by restricted address: %v", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	fan := seedUser(t, conn, node, "guesser@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	if _, err := svc.Redeem(ctx, "short", asActor(fan)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for malformed code, got %v", err)
	}
	if _, err := svc.Redeem(ctx, "ZZZZ9999", asActor(fan)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown code, got %v", err)
	}
}

func TestRedeemConcurrentSingleWinner(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const racers = 10
	actors := make([]domain.Actor, 0, racers)
	for i := 0; i < racers; i++ {
		user := seedUser(t, conn, node, fmt.Sprintf("racer%d@example.com", i), identitydomain.RoleFan)
		actors = append(actors, asActor(user))
	}

	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for _, actor := range actors {
		wg.Add(1)
		go func(a domain.Actor) {
			defer wg.Done()
			_, err := svc.Redeem(ctx, created.Code, a)
			errs <- err
		}(actor)
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrAlreadyUsed):
			losses++
		default:
			t.Fatalf("unexpected redemption error: %v", err)
		}
	}
	if wins != 1 || losses != racers-1 {
		t.Fatalf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}

	var redeemed int64
	if err := conn.Model(&domain.Invite{}).Where("redeemed_by IS NOT NULL").Count(&redeemed).Error; err != nil {
		t.Fatalf("count redeemed: %v", err)
	}
	if redeemed != 1 {
		t.Fatalf("expected 1 redeemed invite, got %d", redeemed)
	}

	var artists int64
	if err := conn.Model(&identitydomain.User{}).Where("role = ?", identitydomain.RoleArtist).Count(&artists).Error; err != nil {
		t.Fatalf("count artists: %v", err)
	}
	if artists != 1 {
		t.Fatalf("expected exactly one granted role, got %d", artists)
	}
}

func TestDeactivateIsIdempotent(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "listener@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Deactivate(ctx, asActor(fan), created.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied for non-issuer, got %v", err)
	}

	if err := svc.Deactivate(ctx, asActor(admin), created.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := svc.Deactivate(ctx, asActor(admin), created.ID); err != nil {
		t.Fatalf("second deactivate must be a no-op: %v", err)
	}
	if stored := loadInvite(t, conn, created.ID); stored.Active {
		t.Fatal("invite still active after deactivation")
	}

	if err := svc.Deactivate(ctx, asActor(admin), "not-a-snowflake"); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
	if err := svc.Deactivate(ctx, asActor(admin), node.Generate().String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeactivateRedeemedInviteIsNoOp(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "winner@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Redeem(ctx, created.Code, asActor(fan)); err != nil {
		t.Fatalf("redeem: %v", err)
	}

	if err := svc.Deactivate(ctx, asActor(admin), created.ID); err != nil {
		t.Fatalf("deactivate after redemption: %v", err)
	}

	stored := loadInvite(t, conn, created.ID)
	if !stored.Active || stored.RedeemedBy == nil {
		t.Fatal("deactivation touched a terminal invite")
	}
}

func TestListRequiresAdminAndFilters(t *testing.T) {
	svc, conn, fake, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	fan := seedUser(t, conn, node, "listener@example.com", identitydomain.RoleFan)
	ctx := context.Background()

	if _, err := svc.List(ctx, asActor(fan), domain.ListRequest{}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	first, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindAdmin}); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if err := svc.Deactivate(ctx, asActor(admin), first.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	kind := domain.KindArtist
	byKind, err := svc.List(ctx, asActor(admin), domain.ListRequest{Kind: &kind})
	if err != nil {
		t.Fatalf("list by kind: %v", err)
	}
	if len(byKind) != 1 || byKind[0].Kind != domain.KindArtist {
		t.Fatalf("expected 1 artist invite, got %+v", byKind)
	}

	byStatus, err := svc.List(ctx, asActor(admin), domain.ListRequest{Status: "deactivated"})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].ID != first.ID {
		t.Fatalf("expected the deactivated invite, got %+v", byStatus)
	}

	fake.Advance(domain.DefaultTTL + time.Hour)
	expired, err := svc.List(ctx, asActor(admin), domain.ListRequest{Status: "expired"})
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].Kind != domain.KindAdmin {
		t.Fatalf("expected the pending invite to report expired, got %+v", expired)
	}
}

func TestGetByCodePreviewDoesNotMutate(t *testing.T) {
	svc, conn, _, node := setupInviteService(t)
	admin := seedUser(t, conn, node, "ops@soundrift.io", identitydomain.RoleAdmin)
	ctx := context.Background()

	created, err := svc.Create(ctx, asActor(admin), domain.CreateRequest{Kind: domain.KindArtist})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	preview, err := svc.GetByCode(ctx, strings.ToLower(created.Code))
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.Status != "pending" {
		t.Fatalf("expected pending, got %s", preview.Status)
	}

	stored := loadInvite(t, conn, created.ID)
	if stored.RedeemedBy != nil || !stored.Active {
		t.Fatal("preview mutated the invite")
	}

	if _, err := svc.GetByCode(ctx, "AAAA0000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
