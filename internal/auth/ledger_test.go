package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/model"
	"github.com/manethdewpura/SparkPoint-Server-sub001/internal/repo"
)

// memTokenRepo is an in-memory RefreshTokenRepo for ledger tests.
type memTokenRepo struct {
	mu           sync.Mutex
	recs         map[uuid.UUID]*model.RefreshTokenRecord
	forceCASLoss bool
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{recs: make(map[uuid.UUID]*model.RefreshTokenRecord)}
}

func (m *memTokenRepo) Create(_ context.Context, rec model.RefreshTokenRecord) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = uuid.New()
	m.recs[rec.ID] = &rec
	return rec.ID, nil
}

func (m *memTokenRepo) FindByPublicToken(_ context.Context, publicToken string) (model.RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.PublicToken == publicToken {
			return *rec, nil
		}
	}
	return model.RefreshTokenRecord{}, repo.ErrNotFound
}

func (m *memTokenRepo) MarkUsed(_ context.Context, id uuid.UUID, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceCASLoss {
		return false, nil
	}
	rec, ok := m.recs[id]
	if !ok || rec.IsUsed || rec.IsRevoked {
		return false, nil
	}
	rec.IsUsed = true
	rec.UsedAt = &usedAt
	rec.LastUsedAt = &usedAt
	return true, nil
}

func (m *memTokenRepo) Revoke(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.IsRevoked {
		return nil
	}
	rec.IsRevoked = true
	rec.RevokedAt = &at
	rec.RevokedReason = &reason
	return nil
}

func (m *memTokenRepo) RevokeFamily(_ context.Context, familyID uuid.UUID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.FamilyID == familyID && !rec.IsRevoked {
			rec.IsRevoked = true
			rec.RevokedAt = &at
			rec.RevokedReason = &reason
		}
	}
	return nil
}

func (m *memTokenRepo) ListActiveByUser(_ context.Context, userID uuid.UUID, now time.Time) ([]model.RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RefreshTokenRecord
	for _, rec := range m.recs {
		if rec.UserID == userID && !rec.IsRevoked && !rec.IsUsed && now.Before(rec.ExpiresAt) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memTokenRepo) DeleteBefore(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rec := range m.recs {
		switch {
		case rec.ExpiresAt.Before(olderThan):
		case rec.IsRevoked && rec.RevokedAt != nil && rec.RevokedAt.Before(olderThan):
		case rec.IsUsed && rec.UsedAt != nil && rec.UsedAt.Before(olderThan):
		default:
			continue
		}
		delete(m.recs, id)
		n++
	}
	return n, nil
}

func (m *memTokenRepo) byPublicToken(t *testing.T, publicToken string) *model.RefreshTokenRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		if rec.PublicToken == publicToken {
			return rec
		}
	}
	t.Fatalf("no record with public token %q", publicToken)
	return nil
}

func (m *memTokenRepo) familyMembers(familyID uuid.UUID) []*model.RefreshTokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RefreshTokenRecord
	for _, rec := range m.recs {
		if rec.FamilyID == familyID {
			out = append(out, rec)
		}
	}
	return out
}

func newTestLedger() (*RefreshTokenLedger, *memTokenRepo) {
	store := newMemTokenRepo()
	return NewRefreshTokenLedger(store, 24*time.Hour), store
}

func TestLedgerIssue_NewFamilyWithNilParent(t *testing.T) {
	ledger, store := newTestLedger()
	userID := uuid.New()

	pair, err := ledger.Issue(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, pair.PublicToken)
	require.NotEmpty(t, pair.Secret)

	rec := store.byPublicToken(t, pair.PublicToken)
	assert.Equal(t, userID, rec.UserID)
	assert.Nil(t, rec.ParentTokenID, "first record in a family must have no parent")
	assert.NotEqual(t, uuid.Nil, rec.FamilyID)
	assert.NotEqual(t, pair.Secret, rec.SecretHash, "secret must not be stored in plaintext")
	assert.Equal(t, HashRefreshSecret(pair.Secret, rec.Salt), rec.SecretHash)
}

func TestLedgerRotate_HappyPath(t *testing.T) {
	ledger, store := newTestLedger()
	userID := uuid.New()
	ctx := context.Background()

	pair1, err := ledger.Issue(ctx, userID)
	require.NoError(t, err)
	rec1 := store.byPublicToken(t, pair1.PublicToken)

	next, pair2, err := ledger.Rotate(ctx, pair1.PublicToken, pair1.Secret)
	require.NoError(t, err)
	assert.NotEqual(t, pair1.PublicToken, pair2.PublicToken)
	assert.Equal(t, rec1.FamilyID, next.FamilyID, "rotation must stay within the family")
	require.NotNil(t, next.ParentTokenID)
	assert.Equal(t, rec1.ID, *next.ParentTokenID)

	assert.True(t, rec1.IsUsed, "rotated token must be marked used")
	assert.False(t, rec1.IsRevoked)
}

func TestLedgerRotate_ReuseRevokesFamily(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	pair1, err := ledger.Issue(ctx, uuid.New())
	require.NoError(t, err)
	familyID := store.byPublicToken(t, pair1.PublicToken).FamilyID

	_, _, err = ledger.Rotate(ctx, pair1.PublicToken, pair1.Secret)
	require.NoError(t, err)

	// Replay of the spent token is a stolen-token signal.
	_, _, err = ledger.Rotate(ctx, pair1.PublicToken, pair1.Secret)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	members := store.familyMembers(familyID)
	require.Len(t, members, 2)
	for _, rec := range members {
		assert.True(t, rec.IsRevoked, "every family member must be revoked after reuse")
		require.NotNil(t, rec.RevokedReason)
		assert.Equal(t, ReasonReuseDetected, *rec.RevokedReason)
	}
}

func TestLedgerRotate_UnknownToken(t *testing.T) {
	ledger, _ := newTestLedger()
	_, _, err := ledger.Rotate(context.Background(), "no-such-token", "secret")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLedgerRotate_WrongSecret(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	pair, err := ledger.Issue(ctx, uuid.New())
	require.NoError(t, err)

	_, _, err = ledger.Rotate(ctx, pair.PublicToken, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// A secret mismatch is not reuse; the record must stay redeemable.
	rec := store.byPublicToken(t, pair.PublicToken)
	assert.False(t, rec.IsUsed)
	assert.False(t, rec.IsRevoked)
}

func TestLedgerRotate_ExpiredToken(t *testing.T) {
	store := newMemTokenRepo()
	ledger := NewRefreshTokenLedger(store, 24*time.Hour)
	ctx := context.Background()

	pair, err := ledger.Issue(ctx, uuid.New())
	require.NoError(t, err)
	store.byPublicToken(t, pair.PublicToken).ExpiresAt = time.Now().UTC().Add(-time.Hour)

	_, _, err = ledger.Rotate(ctx, pair.PublicToken, pair.Secret)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLedgerRotate_RevokedToken(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()

	pair, err := ledger.Issue(ctx, uuid.New())
	require.NoError(t, err)
	require.NoError(t, ledger.Revoke(ctx, pair.PublicToken, ReasonLogout))

	_, _, err = ledger.Rotate(ctx, pair.PublicToken, pair.Secret)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLedgerRotate_CASLossRevokesFamily(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()

	pair, err := ledger.Issue(ctx, uuid.New())
	require.NoError(t, err)
	familyID := store.byPublicToken(t, pair.PublicToken).FamilyID

	// Simulate a concurrent rotation winning the conditional update.
	store.forceCASLoss = true
	_, _, err = ledger.Rotate(ctx, pair.PublicToken, pair.Secret)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)

	for _, rec := range store.familyMembers(familyID) {
		assert.True(t, rec.IsRevoked, "losing the used-flag race must collapse the family")
	}
}

func TestLedgerRevoke_SingleTokenKeepsSiblings(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	// Two independent logins: sibling sessions for the same user.
	pairA, err := ledger.Issue(ctx, userID)
	require.NoError(t, err)
	pairB, err := ledger.Issue(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, ledger.Revoke(ctx, pairA.PublicToken, ReasonLogout))

	// Revoking A must not touch B; B still rotates.
	_, _, err = ledger.Rotate(ctx, pairB.PublicToken, pairB.Secret)
	assert.NoError(t, err)

	// Revoke is idempotent.
	assert.NoError(t, ledger.Revoke(ctx, pairA.PublicToken, ReasonLogout))
}

func TestLedgerRevokeSession_OwnershipEnforced(t *testing.T) {
	ledger, _ := newTestLedger()
	ctx := context.Background()
	owner := uuid.New()

	pair, err := ledger.Issue(ctx, owner)
	require.NoError(t, err)

	err = ledger.RevokeSession(ctx, uuid.New(), pair.PublicToken, ReasonRevokedByUser)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "someone else's token must look unknown")

	assert.NoError(t, ledger.RevokeSession(ctx, owner, pair.PublicToken, ReasonRevokedByUser))
}

func TestLedgerListActiveSessions(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()
	userID := uuid.New()

	pairA, err := ledger.Issue(ctx, userID)
	require.NoError(t, err)
	pairB, err := ledger.Issue(ctx, userID)
	require.NoError(t, err)
	_, err = ledger.Issue(ctx, uuid.New()) // someone else's session
	require.NoError(t, err)

	require.NoError(t, ledger.Revoke(ctx, pairA.PublicToken, ReasonLogout))
	store.byPublicToken(t, pairB.PublicToken).ExpiresAt = time.Now().UTC().Add(-time.Minute)

	pairC, err := ledger.Issue(ctx, userID)
	require.NoError(t, err)

	sessions, err := ledger.ListActiveSessions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1, "revoked and expired sessions must be filtered out")
	assert.Equal(t, pairC.PublicToken, sessions[0].PublicToken)
}

func TestLedgerCleanup(t *testing.T) {
	ledger, store := newTestLedger()
	ctx := context.Background()
	now := time.Now().UTC()

	expired, err := ledger.Issue(ctx, uuid.New())
	require.NoError(t, err)
	store.byPublicToken(t, expired.PublicToken).ExpiresAt = now.Add(-time.Hour)

	fresh, err := ledger.Issue(ctx, uuid.New())
	require.NoError(t, err)
	store.byPublicToken(t, fresh.PublicToken).ExpiresAt = now.Add(time.Hour)

	removed, err := ledger.Cleanup(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.FindByPublicToken(ctx, expired.PublicToken)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = store.FindByPublicToken(ctx, fresh.PublicToken)
	assert.NoError(t, err, "a record expiring in the future must be retained")
}
