package auth

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vdm-lab/contract"
	"vdm-lab/errors"
	"vdm-lab/mocks"
)

const testSecret = "test-secret-do-not-ship"

func TestHashPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("correct horse battery staple")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := ComparePassword("correct horse battery staple", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong password", hash)
	req.NoError(err)
	req.False(match)
}

func TestComparePassword_RejectsMalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("anything", "not-a-hash")
	req.Error(err)
}

func TestTokenIssuer_IssueAndVerify(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, err := issuer.Issue("Alice", "wizard")
	req.NoError(err)

	claims, err := issuer.Verify(token)
	req.NoError(err)
	req.Equal("Alice", claims.Name)
	req.Equal("wizard", claims.AvatarStyle)
}

func TestTokenIssuer_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer(testSecret, -time.Minute)

	token, err := issuer.Issue("Alice", "wizard")
	req.NoError(err)

	_, err = issuer.Verify(token)
	req.Error(err)
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer(testSecret, time.Hour)
	forger := NewTokenIssuer("some-other-secret", time.Hour)

	token, err := forger.Issue("Alice", "wizard")
	req.NoError(err)

	_, err = issuer.Verify(token)
	req.Error(err)
}

func TestManager_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := mocks.NewMockUserStore(ctrl)
	manager := NewManager(slog.Default(), users, NewTokenIssuer(testSecret, time.Hour))

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		users.EXPECT().Get("Alice").Return(contract.UserAccount{}, false, nil).Times(1)
		users.EXPECT().
			Put(gomock.Any()).
			DoAndReturn(func(account contract.UserAccount) error {
				req.Equal("Alice", account.Name)
				req.NotEqual("hunter2hunter2", account.PasswordHash, "password must be hashed")
				req.Contains(account.PasswordHash, "$argon2id$")
				return nil
			}).
			Times(1)

		err := manager.Register(RegisterRequest{Name: "Alice", AvatarStyle: "wizard", Password: "hunter2hunter2"})
		req.NoError(err)
	})

	t.Run("should fail when the name is already taken", func(t *testing.T) {
		req := require.New(t)

		users.EXPECT().Get("Alice").Return(contract.UserAccount{Name: "Alice"}, true, nil).Times(1)
		users.EXPECT().Put(gomock.Any()).Times(0)

		err := manager.Register(RegisterRequest{Name: "Alice", AvatarStyle: "wizard", Password: "hunter2hunter2"})
		req.ErrorIs(err, errors.ErrNameTaken)
	})

	t.Run("should fail validation on a short password", func(t *testing.T) {
		req := require.New(t)

		users.EXPECT().Get(gomock.Any()).Times(0)

		err := manager.Register(RegisterRequest{Name: "Alice", AvatarStyle: "wizard", Password: "short"})
		req.Error(err)
	})
}

func TestManager_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := mocks.NewMockUserStore(ctrl)
	manager := NewManager(slog.Default(), users, NewTokenIssuer(testSecret, time.Hour))

	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	account := contract.UserAccount{Name: "Alice", AvatarStyle: "wizard", PasswordHash: hash}

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)

		users.EXPECT().Get("Alice").Return(account, true, nil).Times(1)

		session, err := manager.Login(LoginRequest{Name: "Alice", Password: "hunter2hunter2"})
		req.NoError(err)
		req.NotEmpty(session.Token)
		req.Equal("Alice", session.Name)
		req.Equal("wizard", session.AvatarStyle)
	})

	t.Run("should fail with a wrong password", func(t *testing.T) {
		req := require.New(t)

		users.EXPECT().Get("Alice").Return(account, true, nil).Times(1)

		_, err := manager.Login(LoginRequest{Name: "Alice", Password: "wrong password"})
		req.ErrorIs(err, errors.ErrBadCredentials)
	})

	t.Run("should fail for an unknown account", func(t *testing.T) {
		req := require.New(t)

		users.EXPECT().Get("Nobody").Return(contract.UserAccount{}, false, nil).Times(1)

		_, err := manager.Login(LoginRequest{Name: "Nobody", Password: "whatever"})
		req.ErrorIs(err, errors.ErrBadCredentials)
	})
}

func TestManager_Authenticate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	users := mocks.NewMockUserStore(ctrl)
	issuer := NewTokenIssuer(testSecret, time.Hour)
	manager := NewManager(slog.Default(), users, issuer)

	t.Run("should resolve a valid token into a profile", func(t *testing.T) {
		req := require.New(t)

		token, err := issuer.Issue("Alice", "wizard")
		req.NoError(err)

		profile, err := manager.Authenticate(token)
		req.NoError(err)
		req.Equal(contract.Profile{Name: "Alice", AvatarStyle: "wizard"}, profile)
	})

	t.Run("should refuse garbage tokens", func(t *testing.T) {
		req := require.New(t)

		_, err := manager.Authenticate("not.a.token")
		req.ErrorIs(err, errors.ErrUnauthorized)
	})

	t.Run("should refuse expired tokens", func(t *testing.T) {
		req := require.New(t)

		expired, err := NewTokenIssuer(testSecret, -time.Minute).Issue("Alice", "wizard")
		req.NoError(err)

		_, err = manager.Authenticate(expired)
		req.ErrorIs(err, errors.ErrUnauthorized)
	})
}
