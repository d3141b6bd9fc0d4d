package provision

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/protocollar/stackup/internal/credential"
	"github.com/protocollar/stackup/internal/jsonout"
	"github.com/protocollar/stackup/internal/prompt"
	"github.com/protocollar/stackup/internal/prompt/prompttest"
)

// fakeService models a live system: actions flip the flags the checks read.
type fakeService struct {
	installed, authed, initialized bool
	linked                         *Project

	projects     [][]Project // successive ListRemoteProjects answers
	listErr      []error
	listCalls    int
	installErr   []error
	loginErr     []error
	linkErr      []error
	linkedTo     []string
	discovered   credential.Set
	required     []string
	hardRequired []string
	onLogin      func()
}

func (f *fakeService) Name() string { return "demo" }

func (f *fakeService) CLIVersion(context.Context) (string, bool) {
	if f.installed {
		return "1.2.3", true
	}
	return "", false
}

func (f *fakeService) IsAuthenticated(context.Context) bool { return f.authed }
func (f *fakeService) IsInitialized(context.Context) bool   { return f.initialized }

func (f *fakeService) IsLinked(context.Context) (Project, bool) {
	if f.linked == nil {
		return Project{}, false
	}
	return *f.linked, true
}

func (f *fakeService) ListRemoteProjects(context.Context) ([]Project, error) {
	i := f.listCalls
	f.listCalls++
	var err error
	if i < len(f.listErr) {
		err = f.listErr[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(f.projects) {
		return f.projects[i], nil
	}
	if len(f.projects) > 0 {
		return f.projects[len(f.projects)-1], nil
	}
	return nil, nil
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeService) Install(context.Context) error {
	if err := pop(&f.installErr); err != nil {
		return err
	}
	f.installed = true
	return nil
}

func (f *fakeService) Login(context.Context) error {
	if f.onLogin != nil {
		f.onLogin()
	}
	if err := pop(&f.loginErr); err != nil {
		return err
	}
	f.authed = true
	return nil
}

func (f *fakeService) Initialize(context.Context) error {
	f.initialized = true
	return nil
}

func (f *fakeService) Link(_ context.Context, p Project) error {
	f.linkedTo = append(f.linkedTo, p.ID)
	if err := pop(&f.linkErr); err != nil {
		return err
	}
	f.linked = &Project{ID: p.ID}
	return nil
}

func (f *fakeService) Credentials(_ context.Context, _ *Project, _ credential.Set, _ Asker) (credential.Set, error) {
	return f.discovered, nil
}

func (f *fakeService) RequiredCredentials() []string { return f.required }
func (f *fakeService) HardRequired() []string        { return f.hardRequired }

func quiet(t *testing.T) {
	t.Helper()
	color.NoColor = true
	jsonout.SetMsgOut(&discard{})
	t.Cleanup(func() { jsonout.SetMsgOut(os.Stdout) })
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newProvisioner(svc Service, p prompt.Prompter, policy Policy) *Provisioner {
	return &Provisioner{
		Service:   svc,
		Prompter:  p,
		Collector: &credential.Collector{Prompter: p, Catalog: credential.Catalog{}},
		Policy:    policy,
	}
}

func statusOf(t *testing.T, res Result, s Step) StepStatus {
	t.Helper()
	sr, ok := res.Step(s)
	if !ok {
		t.Fatalf("step %s missing from %+v", s, res.Steps)
	}
	return sr.Status
}

func TestRunAlreadyConfiguredAsksNothing(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		installed: true, authed: true, initialized: true,
		linked:   &Project{ID: "proj-1"},
		required: []string{"TOKEN"},
	}
	p := prompttest.New()
	res, err := newProvisioner(svc, p, Policy{AllowInstall: true}).Run(context.Background(), credential.Set{"TOKEN": credential.Value("tok")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.Questions) != 0 {
		t.Errorf("asked %v on a configured system", p.Questions)
	}
	if res.Outcome != FullyConfigured {
		t.Errorf("outcome = %s, want fully-configured", res.Outcome)
	}
	for _, s := range []Step{StepInstall, StepAuthenticate, StepInitialize, StepLink} {
		if got := statusOf(t, res, s); got != StatusAlreadyDone {
			t.Errorf("%s = %s, want already-done", s, got)
		}
	}
	if res.LinkedProject == nil || res.LinkedProject.ID != "proj-1" {
		t.Errorf("linked = %+v", res.LinkedProject)
	}
}

func TestRunFullFlowFromScratch(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		projects: [][]Project{{{ID: "p1", Name: "one"}, {ID: "p2", Name: "two"}}},
		required: []string{"TOKEN"},
	}
	p := prompttest.New(
		prompttest.Yes(),         // install
		prompttest.Yes(),         // login
		prompttest.Yes(),         // initialize
		prompttest.Pick(1),       // project two
		prompttest.Text("tok-1"), // TOKEN
	)
	res, err := newProvisioner(svc, p, Policy{AllowInstall: true}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != FullyConfigured {
		t.Errorf("outcome = %s; steps %+v", res.Outcome, res.Steps)
	}
	if len(svc.linkedTo) != 1 || svc.linkedTo[0] != "p2" {
		t.Errorf("linked to %v, want p2", svc.linkedTo)
	}
	if !res.Credentials.Configured("TOKEN") {
		t.Error("TOKEN should be collected")
	}
	if p.Remaining() != 0 {
		t.Errorf("%d answers unused", p.Remaining())
	}
}

func TestRunSkippedInstallSkipsLaterCLISteps(t *testing.T) {
	quiet(t)
	svc := &fakeService{required: []string{"TOKEN"}}
	p := prompttest.New(prompttest.No(), prompttest.Text("tok"))

	res, err := newProvisioner(svc, p, Policy{AllowInstall: true}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if statusOf(t, res, StepInstall) != StatusSkipped {
		t.Error("install should be skipped")
	}
	for _, s := range []Step{StepAuthenticate, StepInitialize, StepLink} {
		if statusOf(t, res, s) != StatusSkipped {
			t.Errorf("%s should be skipped", s)
		}
	}
	// credentials still run
	if statusOf(t, res, StepCredentials) != StatusDone {
		t.Errorf("credentials = %s", statusOf(t, res, StepCredentials))
	}
	if res.Outcome != PartiallyConfigured {
		t.Errorf("outcome = %s, want partially-configured", res.Outcome)
	}
}

func TestRunNoInstallPolicyNeverOffers(t *testing.T) {
	quiet(t)
	svc := &fakeService{}
	p := prompttest.New()
	res, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.Questions) != 0 {
		t.Errorf("questions = %v", p.Questions)
	}
	if res.Outcome != Unconfigured {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if len(res.MissingRequired) != 0 {
		t.Error("optional service should not report missing required credentials")
	}
}

func TestRunRetryAfterFailure(t *testing.T) {
	quiet(t)
	svc := &fakeService{installed: true, loginErr: []error{errors.New("browser closed")}}
	p := prompttest.New(
		prompttest.Yes(),   // login?
		prompttest.Pick(0), // retry
		prompttest.No(),    // initialize?
	)
	res, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if statusOf(t, res, StepAuthenticate) != StatusDone || !res.State.LoggedIn {
		t.Errorf("authenticate = %s, state %+v", statusOf(t, res, StepAuthenticate), res.State)
	}
}

func TestRunSkipAfterFailureContinues(t *testing.T) {
	quiet(t)
	svc := &fakeService{installed: true, loginErr: []error{errors.New("exit status 1")}}
	p := prompttest.New(prompttest.Yes(), prompttest.Pick(1))

	res, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if statusOf(t, res, StepAuthenticate) != StatusFailed {
		t.Errorf("authenticate = %s, want failed", statusOf(t, res, StepAuthenticate))
	}
	if statusOf(t, res, StepInitialize) != StatusSkipped {
		t.Error("initialize should be skipped after failed login")
	}
	if len(res.Warnings) == 0 {
		t.Error("failed step should produce a warning")
	}
}

func TestRunAbort(t *testing.T) {
	quiet(t)
	svc := &fakeService{installed: true, loginErr: []error{errors.New("nope")}}
	p := prompttest.New(prompttest.Yes(), prompttest.Pick(2))

	_, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if !errors.Is(err, ErrAborted) {
		t.Errorf("err = %v, want ErrAborted", err)
	}
}

func TestRunCancelPropagates(t *testing.T) {
	quiet(t)
	svc := &fakeService{installed: true}
	p := prompttest.New(prompttest.Cancel())

	_, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if !errors.Is(err, prompt.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestLinkFallsBackToManualOnEmptyDiscovery(t *testing.T) {
	quiet(t)
	svc := &fakeService{installed: true, authed: true, initialized: true}
	p := prompttest.New(prompttest.Text("manual-ref"))

	res, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(svc.linkedTo) != 1 || svc.linkedTo[0] != "manual-ref" {
		t.Errorf("linked to %v", svc.linkedTo)
	}
	if !res.State.Linked {
		t.Error("should be linked")
	}
}

func TestLinkFallsBackToManualOnDiscoveryError(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		installed: true, authed: true, initialized: true,
		listErr: []error{errors.New("api down")},
	}
	p := prompttest.New(prompttest.Text("typed-ref"))

	res, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.listCalls != 1 {
		t.Errorf("listed %d times, want 1 with no retries", svc.listCalls)
	}
	if !res.State.Linked {
		t.Error("manual entry should link")
	}
}

func TestLinkDiscoveryRetries(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		installed: true, authed: true, initialized: true,
		listErr:  []error{errors.New("flaky"), nil},
		projects: [][]Project{nil, {{ID: "found"}}},
	}
	p := prompttest.New(prompttest.Pick(0))

	res, err := newProvisioner(svc, p, Policy{DiscoveryRetries: 2}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.listCalls != 2 {
		t.Errorf("listed %d times, want 2", svc.listCalls)
	}
	if res.LinkedProject == nil || res.LinkedProject.ID != "found" {
		t.Errorf("linked = %+v", res.LinkedProject)
	}
}

func TestLinkManualEntryFromChoiceList(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		installed: true, authed: true, initialized: true,
		projects: [][]Project{{{ID: "a"}}},
	}
	// options: a, Enter manually…, Skip linking
	p := prompttest.New(prompttest.Pick(1), prompttest.Text("other"))

	if _, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(svc.linkedTo) != 1 || svc.linkedTo[0] != "other" {
		t.Errorf("linked to %v", svc.linkedTo)
	}
}

func TestLinkBlankManualEntrySkips(t *testing.T) {
	quiet(t)
	svc := &fakeService{installed: true, authed: true, initialized: true}
	p := prompttest.New(prompttest.Text(""))

	res, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if statusOf(t, res, StepLink) != StatusSkipped || len(svc.linkedTo) != 0 {
		t.Errorf("link = %s, linkedTo %v", statusOf(t, res, StepLink), svc.linkedTo)
	}
}

func TestRequiredServiceMissingHardCredential(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		required:     []string{"ACCESS_TOKEN"},
		hardRequired: []string{"ACCESS_TOKEN"},
	}
	p := prompttest.New(
		prompttest.Text(""), // ACCESS_TOKEN
		prompttest.No(),     // re-enter?
	)

	res, err := newProvisioner(svc, p, Policy{Required: true}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != Unconfigured {
		t.Errorf("outcome = %s, want unconfigured", res.Outcome)
	}
	if len(res.MissingRequired) != 1 || res.MissingRequired[0] != "ACCESS_TOKEN" {
		t.Errorf("missing = %v", res.MissingRequired)
	}
}

func TestRequiredServiceReentersHardCredential(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		required:     []string{"ACCESS_TOKEN"},
		hardRequired: []string{"ACCESS_TOKEN"},
	}
	p := prompttest.New(
		prompttest.Text(""),           // ACCESS_TOKEN
		prompttest.Yes(),              // re-enter?
		prompttest.Text("tok-second"), // ACCESS_TOKEN again
	)

	res, err := newProvisioner(svc, p, Policy{Required: true}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.MissingRequired) != 0 || res.Outcome == Unconfigured {
		t.Errorf("missing = %v, outcome %s", res.MissingRequired, res.Outcome)
	}
	if got, _ := res.Credentials.Get("ACCESS_TOKEN"); got != "tok-second" {
		t.Errorf("ACCESS_TOKEN = %q", got)
	}
	if statusOf(t, res, StepCredentials) != StatusDone || !res.State.CredentialsValid {
		t.Errorf("credentials = %s, state %+v", statusOf(t, res, StepCredentials), res.State)
	}
	if p.Remaining() != 0 {
		t.Errorf("%d answers unused; asked %v", p.Remaining(), p.Questions)
	}
}

func TestRunInterruptedActionDoesNotOfferRetry(t *testing.T) {
	quiet(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := &fakeService{
		installed: true,
		loginErr:  []error{errors.New("signal: interrupt")},
		onLogin:   cancel,
	}
	p := prompttest.New(prompttest.Yes()) // login?

	_, err := newProvisioner(svc, p, Policy{}).Run(ctx, credential.Set{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if p.Asked("What next?") {
		t.Errorf("retry offered after interrupt; asked %v", p.Questions)
	}
}

func TestDiscoveredCredentialsAreNotPrompted(t *testing.T) {
	quiet(t)
	svc := &fakeService{
		required:   []string{"TOKEN"},
		discovered: credential.Set{"TOKEN": credential.Value("from-cli")},
	}
	p := prompttest.New()

	res, err := newProvisioner(svc, p, Policy{}).Run(context.Background(), credential.Set{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(p.Questions) != 0 {
		t.Errorf("questions = %v", p.Questions)
	}
	if v, _ := res.Credentials.Get("TOKEN"); v != "from-cli" {
		t.Errorf("TOKEN = %q", v)
	}
}
