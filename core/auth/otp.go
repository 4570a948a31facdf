package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

const (
	verifiedPrefix = "verified_"
	verifiedValue  = "true"

	// VerifiedTTL is how long a successful verification allows setting a new password.
	VerifiedTTL = 900 * time.Second

	deliveryTimeout = 30 * time.Second
)

var generateCodeFunc = generateCode // mockable

func otpKey(phone string) string      { return phone }
func verifiedKey(phone string) string { return verifiedPrefix + phone }

// generateCode returns a random numeric code of length digits.
func generateCode(length int) (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", errors.Wrap(err, "generating OTP")
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// OTPService handles the password recovery flow: a code is sent by SMS, verified,
// then the verified phone may set a new password within VerifiedTTL.
type OTPService struct {
	cache    core.Cache
	users    user.Service
	sms      core.SMSService
	logger   core.Logger
	validate *validator.Validate
	conf     core.OTPConfig
	appName  string

	deliveries sync.WaitGroup
}

func NewOTPService(
	conf *core.Config,
	cache core.Cache,
	users user.Service,
	sms core.SMSService,
	logger core.Logger,
	validate *validator.Validate,
) *OTPService {
	return &OTPService{
		cache:    cache,
		users:    users,
		sms:      sms,
		logger:   logger,
		validate: validate,
		conf:     conf.OTP,
		appName:  conf.AppName,
	}
}

// Send stores a new code for phone and texts it when phone belongs to an active User.
// Callers get the same answer whether the phone is registered or not. The SMS is sent
// in the background, see Wait.
func (svc *OTPService) Send(ctx context.Context, phone string) error {
	phone = core.CleanPhone(phone)
	usr, err := svc.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			svc.logger.Info("OTP requested for unknown phone", map[string]interface{}{"phone": phone})
			return nil
		}
		return errors.Wrap(err, "finding user by phone")
	}
	if !usr.IsActive {
		return nil
	}

	code, err := generateCodeFunc(svc.conf.Length)
	if err != nil {
		return err
	}
	if err = svc.cache.Set(ctx, otpKey(phone), code, svc.conf.TTL); err != nil {
		return errors.Wrap(err, "storing OTP")
	}

	msg := core.SMSMessage{
		To:   usr.Phone,
		Body: fmt.Sprintf("%s: your verification code is %s. It is valid for %d minutes.", svc.appName, code, int(svc.conf.TTL.Minutes())),
	}
	svc.deliveries.Add(1)
	go svc.deliver(context.WithoutCancel(ctx), msg)
	return nil
}

func (svc *OTPService) deliver(ctx context.Context, msg core.SMSMessage) {
	defer svc.deliveries.Done()

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := svc.sms.Send(ctx, msg); err != nil {
		svc.logger.Error("sending OTP", errors.Wrap(err, "sending OTP"), map[string]interface{}{"phone": msg.To})
	}
}

// Wait blocks until every pending SMS delivery is over or ctx is done.
func (svc *OTPService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		svc.deliveries.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for OTP deliveries")
	}
}

// Verify checks code against the one stored for phone and marks phone as verified for VerifiedTTL.
// Verifying again with the same valid code re-sets the marker.
func (svc *OTPService) Verify(ctx context.Context, phone, code string) error {
	phone = core.CleanPhone(phone)
	stored, err := svc.cache.Get(ctx, otpKey(phone))
	if err != nil {
		if errors.Cause(err) == core.ErrCacheMiss {
			return ErrOTPInvalid
		}
		return errors.Wrap(err, "reading OTP")
	}
	if stored == "" || stored != code {
		return ErrOTPInvalid
	}
	return errors.Wrap(svc.cache.Set(ctx, verifiedKey(phone), verifiedValue, VerifiedTTL), "marking phone as verified")
}

// IsVerified reports whether phone passed Verify less than VerifiedTTL ago.
func (svc *OTPService) IsVerified(ctx context.Context, phone string) (bool, error) {
	_, err := svc.cache.Get(ctx, verifiedKey(core.CleanPhone(phone)))
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case core.ErrCacheMiss:
		return false, nil
	}
	return false, errors.Wrap(err, "reading verified marker")
}

// SetNewPassword replaces the password of the User owning snp.Phone. Checks run in order and stop
// at the first failure: input validation, then the verified marker, then the User lookup.
func (svc *OTPService) SetNewPassword(ctx context.Context, snp user.SetNewPassword) error {
	if err := snp.Validate(svc.validate); err != nil {
		return err
	}

	verified, err := svc.IsVerified(ctx, snp.Phone)
	if err != nil {
		return err
	}
	if !verified {
		return ErrOTPNotVerified
	}

	usr, err := svc.users.GetByPhone(ctx, snp.Phone)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.ErrNotFound
		}
		return errors.Wrap(err, "finding user by phone")
	}
	if _, err = svc.users.SetPassword(ctx, usr, snp.NewPassword); err != nil {
		return errors.Wrap(err, "setting new password")
	}

	if svc.conf.SingleUse {
		if err = svc.cache.Delete(ctx, verifiedKey(snp.Phone), otpKey(snp.Phone)); err != nil {
			return errors.Wrap(err, "consuming verified marker")
		}
	}
	return nil
}
