package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

func Test_generateCode(t *testing.T) {
	for _, length := range []int{4, 6, 8} {
		code, err := generateCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		assert.Empty(t, strings.Trim(code, "0123456789"))
	}
}

func TestOTPService_Send(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	usr := e.createUser(t, "+998901234567", "Tashkent#2024", true)
	e.createUser(t, "+998907654321", "Tashkent#2024", false)

	generateCodeFunc = func(int) (string, error) { return "482913", nil }
	defer func() { generateCodeFunc = generateCode }()

	t.Run("unknown phone", func(t *testing.T) {
		require.NoError(t, e.otp.Send(ctx, "+998900000000"))
		require.NoError(t, e.otp.Wait(ctx))
		assert.Empty(t, e.sms.SentMessages())
		assert.Zero(t, e.kv.Len())
	})

	t.Run("deactivated user", func(t *testing.T) {
		require.NoError(t, e.otp.Send(ctx, "+998907654321"))
		require.NoError(t, e.otp.Wait(ctx))
		assert.Empty(t, e.sms.SentMessages())
		assert.Zero(t, e.kv.Len())
	})

	t.Run("registered phone", func(t *testing.T) {
		require.NoError(t, e.otp.Send(ctx, "+998 90 123 45 67"))
		require.NoError(t, e.otp.Wait(ctx))

		msg, ok := e.sms.Last(usr.Phone)
		require.True(t, ok)
		assert.Contains(t, msg.Body, "482913")
		assert.Contains(t, msg.Body, "15 minutes")

		code, err := e.kv.Get(ctx, usr.Phone)
		require.NoError(t, err)
		assert.Equal(t, "482913", code)
	})
}

// blockingSMS holds every message until release is closed.
type blockingSMS struct {
	release chan struct{}
	sent    chan core.SMSMessage
}

func (b blockingSMS) Send(ctx context.Context, msg core.SMSMessage) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	b.sent <- msg
	return nil
}

func TestOTPService_Send_background(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	usr := e.createUser(t, "+998901234567", "Tashkent#2024", true)

	sms := blockingSMS{release: make(chan struct{}), sent: make(chan core.SMSMessage, 1)}
	e.otp.sms = sms

	reqCtx, cancel := context.WithCancel(ctx)
	require.NoError(t, e.otp.Send(reqCtx, usr.Phone))
	cancel() // the request is over before the SMS goes out

	waitCtx, stop := context.WithTimeout(ctx, 50*time.Millisecond)
	defer stop()
	assert.Error(t, e.otp.Wait(waitCtx))

	close(sms.release)
	require.NoError(t, e.otp.Wait(ctx))
	msg := <-sms.sent
	assert.Equal(t, usr.Phone, msg.To)
}

func TestOTPService_Verify(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	phone := "+998901234567"

	now := time.Now()
	freezeTime(t, now)
	require.NoError(t, e.kv.Set(ctx, phone, "482913", 900*time.Second))

	verified, err := e.otp.IsVerified(ctx, phone)
	require.NoError(t, err)
	assert.False(t, verified)

	assert.Equal(t, ErrOTPInvalid, e.otp.Verify(ctx, phone, "482914"))
	assert.Equal(t, ErrOTPInvalid, e.otp.Verify(ctx, phone, ""))
	assert.Equal(t, ErrOTPInvalid, e.otp.Verify(ctx, "+998900000000", "482913"))
	verified, err = e.otp.IsVerified(ctx, phone)
	require.NoError(t, err)
	assert.False(t, verified)

	require.NoError(t, e.otp.Verify(ctx, phone, "482913"))
	verified, err = e.otp.IsVerified(ctx, phone)
	require.NoError(t, err)
	assert.True(t, verified)

	// the code stays valid until it expires
	require.NoError(t, e.otp.Verify(ctx, phone, "482913"))

	freezeTime(t, now.Add(901*time.Second))
	assert.Equal(t, ErrOTPInvalid, e.otp.Verify(ctx, phone, "482913"))
	verified, err = e.otp.IsVerified(ctx, phone)
	require.NoError(t, err)
	assert.False(t, verified)
}

func TestOTPService_SetNewPassword(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	usr := e.createUser(t, "+998901234567", "Tashkent#2024", true)

	snp := func(phone, pwd, confirm string) user.SetNewPassword {
		return user.SetNewPassword{Phone: phone, NewPassword: pwd, ConfirmPassword: confirm}
	}

	// validation runs before the verified marker is checked
	err := e.otp.SetNewPassword(ctx, snp("", "", ""))
	var vErrs validator.ValidationErrors
	require.ErrorAs(t, err, &vErrs)
	assert.Len(t, vErrs, 3)

	err = e.otp.SetNewPassword(ctx, snp(usr.Phone, "12345678", "12345678"))
	require.ErrorAs(t, err, &vErrs)
	assert.Equal(t, "pwdnotallnum", vErrs[0].Tag())

	assert.Equal(t, ErrOTPNotVerified, e.otp.SetNewPassword(ctx, snp(usr.Phone, "Samarqand#77", "Samarqand#77")))

	require.NoError(t, e.kv.Set(ctx, usr.Phone, "482913", time.Minute))
	require.NoError(t, e.otp.Verify(ctx, usr.Phone, "482913"))
	require.NoError(t, e.otp.SetNewPassword(ctx, snp(usr.Phone, "Samarqand#77", "Samarqand#77")))

	stored, err := e.users.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, stored.CheckPassword("Samarqand#77"))

	// the marker is reusable within its lifetime unless single use is configured
	require.NoError(t, e.otp.SetNewPassword(ctx, snp(usr.Phone, "Buxoro#1999", "Buxoro#1999")))

	e.otp.conf.SingleUse = true
	require.NoError(t, e.otp.SetNewPassword(ctx, snp(usr.Phone, "Xiva#2000ab", "Xiva#2000ab")))
	assert.Equal(t, ErrOTPNotVerified, e.otp.SetNewPassword(ctx, snp(usr.Phone, "Samarqand#77", "Samarqand#77")))

	t.Run("verified phone without user", func(t *testing.T) {
		phone := "+998900000000"
		require.NoError(t, e.kv.Set(ctx, phone, "111111", time.Minute))
		require.NoError(t, e.otp.Verify(ctx, phone, "111111"))
		assert.Equal(t, user.ErrNotFound, e.otp.SetNewPassword(ctx, snp(phone, "Samarqand#77", "Samarqand#77")))
	})
}
