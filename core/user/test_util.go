package user

import (
	"context"

	"github.com/mwinyimoha/darasa/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose outgoing emails are sent synchronously
// so tests can assert on them.
func NewServiceMock(repo Repository, mailSvc core.EmailService) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
