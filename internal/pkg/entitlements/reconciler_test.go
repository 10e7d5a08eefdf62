package entitlements

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore mimics the store: Grant is a no-op when a grant already exists.
type fakeStore struct {
	grants   map[string]*int64
	calls    []string
	grantErr error
	listErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{grants: map[string]*int64{}}
}

func (f *fakeStore) ActiveEntitlements(ctx context.Context, customerID string) ([]ActiveEntitlement, error) {
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []ActiveEntitlement
	for id, exp := range f.grants {
		out = append(out, ActiveEntitlement{EntitlementID: id, ExpiresAtMs: exp})
	}
	return out, nil
}

func (f *fakeStore) Grant(ctx context.Context, customerID, entitlementID string, expiresAtMs int64) error {
	f.calls = append(f.calls, "grant")
	if f.grantErr != nil {
		return f.grantErr
	}
	if _, ok := f.grants[entitlementID]; ok {
		return nil
	}
	f.grants[entitlementID] = &expiresAtMs
	return nil
}

func (f *fakeStore) Revoke(ctx context.Context, customerID, entitlementID string) error {
	f.calls = append(f.calls, "revoke")
	delete(f.grants, entitlementID)
	return nil
}

func ms(t time.Time) int64 { return t.UnixMilli() }

func int64Ptr(v int64) *int64 { return &v }

func TestReconcileGrantsWhenNoActiveGrant(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, "pro")
	expires := ms(time.Now().Add(30 * 24 * time.Hour))

	res, err := r.Reconcile(context.Background(), "user_1", expires)
	require.NoError(t, err)
	assert.Equal(t, ResultGranted, res)
	assert.Equal(t, []string{"list", "grant"}, store.calls)
	assert.Equal(t, expires, *store.grants["pro"])
}

func TestReconcileExtendsWithRevokeThenGrant(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.grants["pro"] = int64Ptr(ms(now.Add(5 * 24 * time.Hour)))
	r := NewReconciler(store, "pro")
	target := ms(now.Add(30 * 24 * time.Hour))

	res, err := r.Reconcile(context.Background(), "user_1", target)
	require.NoError(t, err)
	assert.Equal(t, ResultExtended, res)
	assert.Equal(t, []string{"list", "revoke", "grant"}, store.calls)
	assert.Equal(t, target, *store.grants["pro"])
}

func TestReconcileEarlierPeriodIsNoOp(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	stored := ms(now.Add(30 * 24 * time.Hour))
	store.grants["pro"] = int64Ptr(stored)
	r := NewReconciler(store, "pro")

	res, err := r.Reconcile(context.Background(), "user_1", ms(now.Add(5*24*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadySatisfied, res)
	assert.Equal(t, []string{"list"}, store.calls, "no write calls expected")
	assert.Equal(t, stored, *store.grants["pro"])

	res, err = r.Reconcile(context.Background(), "user_1", stored)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadySatisfied, res)
}

func TestReconcileLifetimeGrantIsSatisfied(t *testing.T) {
	store := newFakeStore()
	store.grants["pro"] = nil
	r := NewReconciler(store, "pro")

	res, err := r.Reconcile(context.Background(), "user_1", ms(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadySatisfied, res)
}

func TestReconcileIgnoresOtherEntitlements(t *testing.T) {
	store := newFakeStore()
	store.grants["family"] = int64Ptr(ms(time.Now().Add(365 * 24 * time.Hour)))
	r := NewReconciler(store, "pro")

	res, err := r.Reconcile(context.Background(), "user_1", ms(time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, ResultGranted, res)
}

func TestReconcileResumesAfterRevokeWithoutGrant(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.grants["pro"] = int64Ptr(ms(now.Add(24 * time.Hour)))
	store.grantErr = errors.New("store down")
	r := NewReconciler(store, "pro")
	target := ms(now.Add(30 * 24 * time.Hour))

	_, err := r.Reconcile(context.Background(), "user_1", target)
	require.Error(t, err)
	assert.Empty(t, store.grants, "revoke went through, grant did not")

	store.grantErr = nil
	store.calls = nil
	res, err := r.Reconcile(context.Background(), "user_1", target)
	require.NoError(t, err)
	assert.Equal(t, ResultGranted, res)
	assert.Equal(t, []string{"list", "grant"}, store.calls)
	assert.Equal(t, target, *store.grants["pro"])
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, "pro")
	target := ms(time.Now().Add(30 * 24 * time.Hour))

	_, err := r.Reconcile(context.Background(), "user_1", target)
	require.NoError(t, err)
	res, err := r.Reconcile(context.Background(), "user_1", target)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadySatisfied, res)
	assert.Equal(t, target, *store.grants["pro"])
}

func TestReconcilePropagatesListError(t *testing.T) {
	store := newFakeStore()
	store.listErr = &APIError{Op: "list active entitlements", Status: 503}
	r := NewReconciler(store, "pro")

	_, err := r.Reconcile(context.Background(), "user_1", 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.Status)
}

func TestReconcileValidatesInput(t *testing.T) {
	r := NewReconciler(newFakeStore(), "pro")
	_, err := r.Reconcile(context.Background(), " ", 1)
	assert.Error(t, err)
	_, err = r.Reconcile(context.Background(), "user_1", 0)
	assert.Error(t, err)
	_, err = NewReconciler(newFakeStore(), "").Reconcile(context.Background(), "user_1", 1)
	assert.Error(t, err)
}
