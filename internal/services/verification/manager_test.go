// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kaminskia1/excel-autograder/internal/clock"
	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/kaminskia1/excel-autograder/internal/repository"
	"github.com/kaminskia1/excel-autograder/internal/services/verification"
	"github.com/kaminskia1/excel-autograder/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type sentMail struct {
	To    string
	Token models.VerificationToken
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (f *fakeSender) SendVerification(_ context.Context, user *models.User, token *models.VerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	to := user.Email
	if token.Type == models.TokenTypeChange {
		to = user.PendingEmailValue()
	}
	f.sent = append(f.sent, sentMail{To: to, Token: *token})
	return nil
}

func (f *fakeSender) last(t *testing.T) sentMail {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent, "no mail sent")
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	mgr    *verification.Manager
	repo   *repository.Repository
	sender *fakeSender
	clock  *clock.Fixed
}

func setup(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	sender := &fakeSender{}
	clk := clock.NewFixed(start)
	mgr := verification.NewManager(repo, sender,
		verification.WithClock(clk),
		verification.WithCooldown(15*time.Minute),
		verification.WithExpiry(7*24*time.Hour),
	)
	return &fixture{mgr: mgr, repo: repo, sender: sender, clock: clk}
}

func (f *fixture) reload(t *testing.T, user *models.User) *models.User {
	t.Helper()
	stored, err := f.repo.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	return stored
}

func (f *fixture) tokens(t *testing.T, user *models.User) []models.VerificationToken {
	t.Helper()
	tokens, err := f.repo.ListUserVerificationTokens(context.Background(), user.ID)
	require.NoError(t, err)
	return tokens
}

func TestCreateToken(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "alice")

	token, err := f.mgr.CreateToken(context.Background(), user, models.TokenTypeVerify)

	require.NoError(t, err)
	assert.Len(t, token.Token, 64)
	assert.NotContains(t, token.Token, "=")
	assert.Equal(t, user.ID, token.UserID)
	assert.Equal(t, models.TokenTypeVerify, token.Type)
	assert.True(t, start.Equal(token.CreatedAt))
	assert.True(t, start.Add(7*24*time.Hour).Equal(token.ExpiresAt))
}

func TestCreateToken_SecondReplacesFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")

	first, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)
	second, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
	tokens := f.tokens(t, user)
	require.Len(t, tokens, 1)
	assert.Equal(t, second.Token, tokens[0].Token)
}

func TestCreateToken_TypesAreIndependent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")

	_, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)
	_, err = f.mgr.CreateToken(ctx, user, models.TokenTypeChange)
	require.NoError(t, err)

	assert.Len(t, f.tokens(t, user), 2)
}

func TestCreateToken_UnknownType(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "alice")

	_, err := f.mgr.CreateToken(context.Background(), user, models.TokenType("reset"))

	require.Error(t, err)
}

func TestCreateToken_UniqueValues(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seen := make(map[string]bool)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		user := testutil.NewTestUser(t, f.repo, name)
		token, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
		require.NoError(t, err)
		assert.False(t, seen[token.Token], "duplicate token")
		seen[token.Token] = true
	}
}

func TestIsExpired(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "alice")

	token, err := f.mgr.CreateToken(context.Background(), user, models.TokenTypeVerify)
	require.NoError(t, err)

	assert.False(t, f.mgr.IsExpired(token))

	f.clock.Set(token.ExpiresAt)
	assert.False(t, f.mgr.IsExpired(token), "expires strictly after expires_at")

	f.clock.Advance(time.Second)
	assert.True(t, f.mgr.IsExpired(token))
}

func TestCleanupExpired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, f.repo, "alice")
	bob := testutil.NewTestUser(t, f.repo, "bob")

	_, err := f.mgr.CreateToken(ctx, alice, models.TokenTypeVerify)
	require.NoError(t, err)
	f.clock.Advance(3 * 24 * time.Hour)
	_, err = f.mgr.CreateToken(ctx, bob, models.TokenTypeVerify)
	require.NoError(t, err)

	f.clock.Advance(5 * 24 * time.Hour)
	n, err := f.mgr.CleanupExpired(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, f.tokens(t, alice))
	assert.Len(t, f.tokens(t, bob), 1)

	n, err = f.mgr.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVerify_UnknownToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	token, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)

	_, err = f.mgr.Verify(ctx, "does-not-exist")

	require.ErrorIs(t, err, verification.ErrInvalidToken)
	tokens := f.tokens(t, user)
	require.Len(t, tokens, 1)
	assert.Equal(t, token.Token, tokens[0].Token)
	assert.False(t, f.reload(t, user).EmailVerified)
}

func TestVerify_EmptyToken(t *testing.T) {
	f := setup(t)

	_, err := f.mgr.Verify(context.Background(), "")

	assert.ErrorIs(t, err, verification.ErrInvalidToken)
}

func TestVerify_ExpiredToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	token, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.mgr.Verify(ctx, token.Token)

	require.ErrorIs(t, err, verification.ErrTokenExpired)
	assert.Empty(t, f.tokens(t, user), "expired token is deleted")
	assert.False(t, f.reload(t, user).EmailVerified)

	_, err = f.mgr.Verify(ctx, token.Token)
	assert.ErrorIs(t, err, verification.ErrInvalidToken)
}

func TestVerify_VerifyToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	token, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)

	result, err := f.mgr.Verify(ctx, token.Token)

	require.NoError(t, err)
	assert.True(t, result.User.EmailVerified)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "msg_email_verified", result.MessageID())
	assert.True(t, f.reload(t, user).EmailVerified)
	assert.Empty(t, f.tokens(t, user))
}

func TestVerify_TokenIsSingleUse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	token, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)

	_, err = f.mgr.Verify(ctx, token.Token)
	require.NoError(t, err)

	_, err = f.mgr.Verify(ctx, token.Token)
	assert.ErrorIs(t, err, verification.ErrInvalidToken)
}

func TestVerify_ChangeToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	pending := "new@x.com"
	require.NoError(t, f.repo.SetPendingEmail(ctx, user.ID, &pending))
	token, err := f.mgr.CreateToken(ctx, user, models.TokenTypeChange)
	require.NoError(t, err)

	result, err := f.mgr.Verify(ctx, token.Token)

	require.NoError(t, err)
	assert.Equal(t, "msg_email_changed", result.MessageID())
	assert.Equal(t, "new@x.com", result.User.Email)
	assert.Nil(t, result.User.PendingEmail)
	assert.True(t, result.User.EmailVerified)

	stored := f.reload(t, user)
	assert.Equal(t, "new@x.com", stored.Email)
	assert.Nil(t, stored.PendingEmail)
	assert.True(t, stored.EmailVerified)
	assert.Empty(t, f.tokens(t, user))
}

// The token survives the failed redemption.
func TestVerify_ChangeTokenWithoutPendingEmailIsKept(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	token, err := f.mgr.CreateToken(ctx, user, models.TokenTypeChange)
	require.NoError(t, err)

	_, err = f.mgr.Verify(ctx, token.Token)

	require.ErrorIs(t, err, verification.ErrNoPendingChange)
	tokens := f.tokens(t, user)
	require.Len(t, tokens, 1)
	assert.Equal(t, token.Token, tokens[0].Token)
	stored := f.reload(t, user)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.False(t, stored.EmailVerified)
}

func TestVerify_ChangeTokenEmailTakenMeanwhile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := testutil.NewTestUser(t, f.repo, "alice")
	pending := "shared@example.com"
	require.NoError(t, f.repo.SetPendingEmail(ctx, alice.ID, &pending))
	token, err := f.mgr.CreateToken(ctx, alice, models.TokenTypeChange)
	require.NoError(t, err)
	require.NoError(t, f.repo.CreateUser(ctx, &models.User{
		Username: "bob", Email: "Shared@example.com", PasswordHash: testutil.TestPasswordHash,
	}))

	_, err = f.mgr.Verify(ctx, token.Token)

	require.ErrorIs(t, err, verification.ErrEmailInUse)
	stored := f.reload(t, alice)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, "shared@example.com", stored.PendingEmailValue())
	assert.Len(t, f.tokens(t, alice), 1)
}

func TestSendInitial(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	sentAt := start.Add(-time.Minute)
	require.NoError(t, f.repo.SetLastVerificationEmailSent(ctx, user.ID, sentAt))
	user = f.reload(t, user)

	err := f.mgr.SendInitial(ctx, user)

	require.NoError(t, err, "cooldown does not apply")
	mail := f.sender.last(t)
	assert.Equal(t, "alice@example.com", mail.To)
	assert.Equal(t, models.TokenTypeVerify, mail.Token.Type)
	stored := f.reload(t, user)
	require.NotNil(t, stored.LastVerificationEmailSent)
	assert.True(t, start.Equal(*stored.LastVerificationEmailSent))
}

func TestSendInitial_SendFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	f.sender.err = errors.New("smtp down")

	err := f.mgr.SendInitial(ctx, user)

	require.ErrorIs(t, err, verification.ErrSendFailed)
	assert.Len(t, f.tokens(t, user), 1)
	assert.Nil(t, f.reload(t, user).LastVerificationEmailSent)
}

func TestResend_AlreadyVerified(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	require.NoError(t, f.repo.MarkEmailVerified(ctx, user.ID))
	user = f.reload(t, user)

	err := f.mgr.Resend(ctx, user)

	require.ErrorIs(t, err, verification.ErrAlreadyVerified)
	assert.Zero(t, f.sender.count())
}

func TestResend_VerifyToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")

	err := f.mgr.Resend(ctx, user)

	require.NoError(t, err)
	mail := f.sender.last(t)
	assert.Equal(t, "alice@example.com", mail.To)
	assert.Equal(t, models.TokenTypeVerify, mail.Token.Type)

	tokens := f.tokens(t, user)
	require.Len(t, tokens, 1)
	assert.Equal(t, mail.Token.Token, tokens[0].Token)

	stored := f.reload(t, user)
	require.NotNil(t, stored.LastVerificationEmailSent)
	assert.True(t, start.Equal(*stored.LastVerificationEmailSent))
	require.NotNil(t, user.LastVerificationEmailSent, "caller's user is updated")
}

func TestResend_RateLimited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	require.NoError(t, f.mgr.Resend(ctx, user))

	f.clock.Advance(5 * time.Minute)
	err := f.mgr.Resend(ctx, user)

	require.ErrorIs(t, err, verification.ErrRateLimited)
	var rl *verification.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 600, rl.SecondsRemaining)
	assert.Equal(t, 1, f.sender.count())

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.mgr.Resend(ctx, user))
	assert.Equal(t, 2, f.sender.count())
}

func TestResend_ConcurrentCallsSendOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, f.repo, "alice")

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		// Each request loads its own copy of the user, as the handlers do.
		user := f.reload(t, created)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.mgr.Resend(ctx, user)
		}()
	}
	wg.Wait()

	var sent, limited int
	for _, err := range errs {
		switch {
		case err == nil:
			sent++
		case errors.Is(err, verification.ErrRateLimited):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, sent)
	assert.Equal(t, callers-1, limited)
	assert.Equal(t, 1, f.sender.count())
	assert.Len(t, f.tokens(t, created), 1)
}

func TestResend_StaleUserCopyIsRateLimited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	stale := f.reload(t, user)
	require.NoError(t, f.mgr.Resend(ctx, user))

	err := f.mgr.Resend(ctx, stale)

	require.ErrorIs(t, err, verification.ErrRateLimited)
	assert.Equal(t, 1, f.sender.count())
}

func TestRequestEmailChange_StaleUserCopyIsRateLimited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	stale := f.reload(t, user)
	require.NoError(t, f.mgr.Resend(ctx, user))

	err := f.mgr.RequestEmailChange(ctx, stale, "new@example.com")

	require.ErrorIs(t, err, verification.ErrRateLimited)
	assert.Nil(t, f.reload(t, user).PendingEmail)
}

func TestResend_PendingChangeSendsChangeToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	require.NoError(t, f.repo.MarkEmailVerified(ctx, user.ID))
	pending := "new@example.com"
	require.NoError(t, f.repo.SetPendingEmail(ctx, user.ID, &pending))
	user = f.reload(t, user)

	err := f.mgr.Resend(ctx, user)

	require.NoError(t, err)
	mail := f.sender.last(t)
	assert.Equal(t, "new@example.com", mail.To)
	assert.Equal(t, models.TokenTypeChange, mail.Token.Type)
}

func TestResend_SendFailsKeepsState(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	require.NoError(t, f.mgr.RequestEmailChange(ctx, user, "new@example.com"))
	firstSent := *f.reload(t, user).LastVerificationEmailSent
	firstToken := f.sender.last(t).Token.Token

	f.clock.Advance(16 * time.Minute)
	f.sender.err = errors.New("smtp down")
	err := f.mgr.Resend(ctx, user)

	require.ErrorIs(t, err, verification.ErrSendFailed)
	stored := f.reload(t, user)
	assert.Equal(t, "new@example.com", stored.PendingEmailValue(), "pending email is not rolled back")
	require.NotNil(t, stored.LastVerificationEmailSent)
	assert.True(t, firstSent.Equal(*stored.LastVerificationEmailSent), "send time is not updated")

	tokens := f.tokens(t, user)
	require.Len(t, tokens, 1)
	assert.Equal(t, models.TokenTypeChange, tokens[0].Type)
	assert.NotEqual(t, firstToken, tokens[0].Token, "the new token remains")
}

func TestRequestEmailChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")

	err := f.mgr.RequestEmailChange(ctx, user, "  New@Example.com ")

	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.PendingEmailValue())

	mail := f.sender.last(t)
	assert.Equal(t, "new@example.com", mail.To)
	assert.Equal(t, models.TokenTypeChange, mail.Token.Type)

	stored := f.reload(t, user)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, "new@example.com", stored.PendingEmailValue())
	require.NotNil(t, stored.LastVerificationEmailSent)

	tokens := f.tokens(t, user)
	require.Len(t, tokens, 1)
	assert.Equal(t, mail.Token.Token, tokens[0].Token)

	_, err = f.mgr.Verify(ctx, mail.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", f.reload(t, user).Email)
}

func TestRequestEmailChange_Validation(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  error
	}{
		{"empty", "   ", verification.ErrEmailRequired},
		{"no at sign", "not-an-email", verification.ErrInvalidEmail},
		{"display name", "Bob <bob@example.com>", verification.ErrInvalidEmail},
		{"same email", "alice@example.com", verification.ErrSameEmail},
		{"same email other case", "ALICE@Example.com", verification.ErrSameEmail},
		{"owned by another user", "Bob@Example.com", verification.ErrEmailInUse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			user := testutil.NewTestUser(t, f.repo, "alice")
			testutil.NewTestUser(t, f.repo, "bob")

			err := f.mgr.RequestEmailChange(context.Background(), user, tt.email)

			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, f.reload(t, user).PendingEmail)
			assert.Empty(t, f.tokens(t, user))
			assert.Zero(t, f.sender.count())
		})
	}
}

func TestRequestEmailChange_RateLimited(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	require.NoError(t, f.mgr.SendInitial(ctx, user))

	f.clock.Advance(time.Minute)
	err := f.mgr.RequestEmailChange(ctx, user, "new@example.com")

	var rl *verification.RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 14*60, rl.SecondsRemaining)
	assert.Nil(t, f.reload(t, user).PendingEmail)
}

func TestRequestEmailChange_SendFailsRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	f.sender.err = errors.New("smtp down")

	err := f.mgr.RequestEmailChange(ctx, user, "new@example.com")

	require.ErrorIs(t, err, verification.ErrSendFailed)
	assert.Nil(t, user.PendingEmail)
	stored := f.reload(t, user)
	assert.Nil(t, stored.PendingEmail, "pending email is rolled back")
	assert.Nil(t, stored.LastVerificationEmailSent)
	assert.Equal(t, "alice@example.com", stored.Email)
}

func TestRequestEmailChange_ReplacesPreviousRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	require.NoError(t, f.mgr.RequestEmailChange(ctx, user, "first@example.com"))
	firstToken := f.sender.last(t).Token.Token

	f.clock.Advance(15 * time.Minute)
	require.NoError(t, f.mgr.RequestEmailChange(ctx, user, "second@example.com"))

	assert.Equal(t, "second@example.com", f.reload(t, user).PendingEmailValue())
	_, err := f.mgr.Verify(ctx, firstToken)
	assert.ErrorIs(t, err, verification.ErrInvalidToken)
}

func TestCancelEmailChange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")
	_, err := f.mgr.CreateToken(ctx, user, models.TokenTypeVerify)
	require.NoError(t, err)
	require.NoError(t, f.mgr.RequestEmailChange(ctx, user, "new@example.com"))
	changeToken := f.sender.last(t).Token.Token

	err = f.mgr.CancelEmailChange(ctx, user)

	require.NoError(t, err)
	assert.Nil(t, user.PendingEmail)
	assert.Nil(t, f.reload(t, user).PendingEmail)

	tokens := f.tokens(t, user)
	require.Len(t, tokens, 1)
	assert.Equal(t, models.TokenTypeVerify, tokens[0].Type, "verify token is kept")

	_, err = f.mgr.Verify(ctx, changeToken)
	assert.ErrorIs(t, err, verification.ErrInvalidToken)
}

func TestCancelEmailChange_NoPendingChange(t *testing.T) {
	f := setup(t)
	user := testutil.NewTestUser(t, f.repo, "alice")

	err := f.mgr.CancelEmailChange(context.Background(), user)

	assert.ErrorIs(t, err, verification.ErrNoPendingChange)
}

func TestCanSend(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, f.repo, "alice")

	ok, remaining, err := f.mgr.CanSend(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, remaining)

	require.NoError(t, f.mgr.Resend(ctx, user))
	f.clock.Advance(5 * time.Minute)

	ok, remaining, err = f.mgr.CanSend(ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, remaining, 0)
	assert.LessOrEqual(t, remaining, 900)

	f.clock.Advance(15 * time.Minute)
	ok, _, err = f.mgr.CanSend(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)
}
