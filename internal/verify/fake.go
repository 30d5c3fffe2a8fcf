package verify

import (
	"context"
	"sync"
)

// FakeVerifier records calls and returns configured errors. Test-only helper
// kept in the package so rootaccount tests can share it.
type FakeVerifier struct {
	mu          sync.Mutex
	EmailErr    error
	MobileErr   error
	EmailCalls  []string
	MobileCalls []string
}

func (f *FakeVerifier) VerifyEmailOwnership(ctx context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EmailCalls = append(f.EmailCalls, email)
	return f.EmailErr
}

func (f *FakeVerifier) VerifyMobileOwnership(ctx context.Context, mobile string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MobileCalls = append(f.MobileCalls, mobile)
	return f.MobileErr
}

func (f *FakeVerifier) EmailProvider() string  { return "fake-email" }
func (f *FakeVerifier) MobileProvider() string { return "fake-sms" }

var _ ContactVerifier = (*FakeVerifier)(nil)
