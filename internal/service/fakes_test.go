package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/santerahq/claimsgate/internal/domain"
	"github.com/santerahq/claimsgate/internal/domain/admission"
	"github.com/santerahq/claimsgate/internal/domain/claim"
	"github.com/santerahq/claimsgate/internal/domain/pacode"
	"github.com/santerahq/claimsgate/internal/domain/referral"
	"github.com/santerahq/claimsgate/pkg/metrics"
	"go.uber.org/zap"
)

// In-memory repositories backing the service tests. Atomic runs the
// function directly; the stores behave like committed state.

type fakeReferralRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*referral.Referral
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{items: make(map[uuid.UUID]*referral.Referral)}
}

func (f *fakeReferralRepo) Create(_ context.Context, r *referral.Referral) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeReferralRepo) GetByID(_ context.Context, id uuid.UUID) (*referral.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.items[id]
	if !ok {
		return nil, referral.ErrReferralNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReferralRepo) GetByCode(_ context.Context, code string) (*referral.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.Code == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, referral.ErrReferralNotFound
}

func (f *fakeReferralRepo) GetByUTN(_ context.Context, utn string) (*referral.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.items {
		if r.UTN == utn {
			cp := *r
			return &cp, nil
		}
	}
	return nil, referral.ErrReferralNotFound
}

func (f *fakeReferralRepo) Update(_ context.Context, r *referral.Referral) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeReferralRepo) List(_ context.Context, q *referral.ListReferralsQuery) (*referral.PagedReferrals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*referral.Referral
	for _, r := range f.items {
		if q.Status != nil && r.Status != *q.Status {
			continue
		}
		if q.EnrolleeID != nil && r.EnrolleeID != *q.EnrolleeID {
			continue
		}
		if q.ReceivingFacilityID != nil && r.ReceivingFacilityID != *q.ReceivingFacilityID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return &referral.PagedReferrals{Referrals: out, TotalCount: int64(len(out)), Page: 1, PageSize: len(out)}, nil
}

func (f *fakeReferralRepo) Atomic(_ context.Context, fn func(referral.Repository) error) error {
	return fn(f)
}

type fakePACodeRepo struct {
	mu            sync.Mutex
	items         map[uuid.UUID]*pacode.PACode
	failGetByCode error
}

func newFakePACodeRepo() *fakePACodeRepo {
	return &fakePACodeRepo{items: make(map[uuid.UUID]*pacode.PACode)}
}

func (f *fakePACodeRepo) Create(_ context.Context, p *pacode.PACode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakePACodeRepo) GetByID(_ context.Context, id uuid.UUID) (*pacode.PACode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return nil, pacode.ErrPACodeNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePACodeRepo) GetByCode(_ context.Context, code string) (*pacode.PACode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGetByCode != nil {
		return nil, f.failGetByCode
	}
	for _, p := range f.items {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pacode.ErrPACodeNotFound
}

func (f *fakePACodeRepo) Update(_ context.Context, p *pacode.PACode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.items[p.ID] = &cp
	return nil
}

func (f *fakePACodeRepo) HasApprovedBundle(_ context.Context, referralID uuid.UUID, excludeID *uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.items {
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		if p.ReferralID == referralID && p.Type == pacode.TypeBundle &&
			(p.Status == pacode.StatusApproved || p.Status == pacode.StatusUsed) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePACodeRepo) MaxSequence(_ context.Context, admissionID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, p := range f.items {
		if p.AdmissionID != nil && *p.AdmissionID == admissionID && p.Sequence > max {
			max = p.Sequence
		}
	}
	return max, nil
}

func (f *fakePACodeRepo) ListByReferral(_ context.Context, referralID uuid.UUID) ([]*pacode.PACode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pacode.PACode
	for _, p := range f.items {
		if p.ReferralID == referralID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePACodeRepo) Atomic(_ context.Context, fn func(pacode.Repository) error) error {
	return fn(f)
}

func (f *fakePACodeRepo) all() []*pacode.PACode {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*pacode.PACode, 0, len(f.items))
	for _, p := range f.items {
		cp := *p
		out = append(out, &cp)
	}
	return out
}

type fakeAdmissionRepo struct {
	mu          sync.Mutex
	items       map[uuid.UUID]*admission.Admission
	failGetByID error
}

func newFakeAdmissionRepo() *fakeAdmissionRepo {
	return &fakeAdmissionRepo{items: make(map[uuid.UUID]*admission.Admission)}
}

func (f *fakeAdmissionRepo) Create(_ context.Context, a *admission.Admission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAdmissionRepo) GetByID(_ context.Context, id uuid.UUID) (*admission.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGetByID != nil {
		return nil, f.failGetByID
	}
	a, ok := f.items[id]
	if !ok {
		return nil, admission.ErrAdmissionNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAdmissionRepo) GetByReferral(_ context.Context, referralID uuid.UUID) (*admission.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if a.ReferralID == referralID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, admission.ErrAdmissionNotFound
}

func (f *fakeAdmissionRepo) Update(_ context.Context, a *admission.Admission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAdmissionRepo) HasActiveForEnrollee(_ context.Context, enrolleeID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.items {
		if a.EnrolleeID == enrolleeID && a.Status == admission.StatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAdmissionRepo) Atomic(_ context.Context, fn func(admission.Repository) error) error {
	return fn(f)
}

// fakeClaimRepo stores headers, lines, and diagnoses separately, matching
// the store's behavior of never writing child rows through a header save.
type fakeClaimRepo struct {
	mu               sync.Mutex
	claims           map[uuid.UUID]*claim.Claim
	lines            map[uuid.UUID][]*claim.ClaimLine
	diagnoses        map[uuid.UUID][]*claim.ClaimDiagnosis
	audits           []*domain.AuditLog
	failAddDiagnosis error
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{
		claims:    make(map[uuid.UUID]*claim.Claim),
		lines:     make(map[uuid.UUID][]*claim.ClaimLine),
		diagnoses: make(map[uuid.UUID][]*claim.ClaimDiagnosis),
	}
}

func (f *fakeClaimRepo) Create(_ context.Context, c *claim.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	cp.Lines, cp.Diagnoses = nil, nil
	f.claims[c.ID] = &cp
	return nil
}

func (f *fakeClaimRepo) GetByID(_ context.Context, id uuid.UUID) (*claim.Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.claims[id]
	if !ok {
		return nil, claim.ErrClaimNotFound
	}
	cp := *c
	for _, l := range f.lines[id] {
		cp.Lines = append(cp.Lines, *l)
	}
	for _, d := range f.diagnoses[id] {
		cp.Diagnoses = append(cp.Diagnoses, *d)
	}
	return &cp, nil
}

func (f *fakeClaimRepo) GetByAdmission(_ context.Context, admissionID uuid.UUID) ([]*claim.Claim, error) {
	f.mu.Lock()
	ids := make([]uuid.UUID, 0)
	for id, c := range f.claims {
		if c.AdmissionID == admissionID {
			ids = append(ids, id)
		}
	}
	f.mu.Unlock()

	out := make([]*claim.Claim, 0, len(ids))
	for _, id := range ids {
		c, err := f.GetByID(context.Background(), id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeClaimRepo) Update(_ context.Context, c *claim.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[c.ID]; !ok {
		return claim.ErrClaimNotFound
	}
	cp := *c
	cp.Lines, cp.Diagnoses = nil, nil
	f.claims[c.ID] = &cp
	return nil
}

func (f *fakeClaimRepo) List(_ context.Context, q *claim.ListClaimsQuery) (*claim.PagedClaims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*claim.Claim
	for _, c := range f.claims {
		if q.FacilityID != nil && c.FacilityID != *q.FacilityID {
			continue
		}
		if q.EnrolleeID != nil && c.EnrolleeID != *q.EnrolleeID {
			continue
		}
		if q.Status != nil && c.Status != *q.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return &claim.PagedClaims{Claims: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize}, nil
}

func (f *fakeClaimRepo) AddLine(_ context.Context, l *claim.ClaimLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	cp := *l
	f.lines[l.ClaimID] = append(f.lines[l.ClaimID], &cp)
	return nil
}

func (f *fakeClaimRepo) UpdateLine(_ context.Context, l *claim.ClaimLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.lines[l.ClaimID] {
		if existing.ID == l.ID {
			cp := *l
			f.lines[l.ClaimID][i] = &cp
			return nil
		}
	}
	return claim.ErrLineNotFound
}

func (f *fakeClaimRepo) AddDiagnosis(_ context.Context, d *claim.ClaimDiagnosis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddDiagnosis != nil {
		return f.failAddDiagnosis
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	f.diagnoses[d.ClaimID] = append(f.diagnoses[d.ClaimID], &cp)
	return nil
}

func (f *fakeClaimRepo) UpdateDiagnosis(_ context.Context, d *claim.ClaimDiagnosis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.diagnoses[d.ClaimID] {
		if existing.ID == d.ID {
			cp := *d
			f.diagnoses[d.ClaimID][i] = &cp
			return nil
		}
	}
	return claim.ErrDiagnosisNotFound
}

func (f *fakeClaimRepo) LinesByICD10(_ context.Context, claimID uuid.UUID, icd10 string) ([]*claim.ClaimLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*claim.ClaimLine
	for _, l := range f.lines[claimID] {
		if l.ICD10Code == icd10 {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeClaimRepo) AppendAudit(_ context.Context, entry *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *entry
	f.audits = append(f.audits, &cp)
	return nil
}

func (f *fakeClaimRepo) Atomic(_ context.Context, fn func(claim.Repository) error) error {
	return fn(f)
}

func (f *fakeClaimRepo) auditTrail() []*domain.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.AuditLog(nil), f.audits...)
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

// Directory and catalog stubs.

type stubFacilities struct {
	inactive map[uuid.UUID]bool
}

func (s *stubFacilities) Lookup(_ context.Context, id uuid.UUID) (*Facility, error) {
	return &Facility{ID: id, Name: "Test Facility", Level: "secondary", Active: !s.inactive[id]}, nil
}

type stubEnrollees struct {
	inactive map[uuid.UUID]bool
}

func (s *stubEnrollees) Lookup(_ context.Context, id uuid.UUID) (*Enrollee, error) {
	return &Enrollee{ID: id, Name: "Test Enrollee", Active: !s.inactive[id]}, nil
}

var errTariffUnknown = errors.New("tariff not in catalog")

type stubTariffs struct {
	prices map[string]int64
}

func (s *stubTariffs) Lookup(_ context.Context, code string) (*Tariff, error) {
	price, ok := s.prices[code]
	if !ok {
		return nil, errTariffUnknown
	}
	return &Tariff{Code: code, UnitPrice: price}, nil
}

type stubBundles struct {
	bundles []Bundle
}

func (s *stubBundles) MatchICD10(_ context.Context, icd10 string) (*Bundle, error) {
	var best *Bundle
	for i := range s.bundles {
		b := &s.bundles[i]
		if strings.HasPrefix(icd10, b.ICD10Prefix) {
			if best == nil || len(b.ICD10Prefix) > len(best.ICD10Prefix) {
				best = b
			}
		}
	}
	return best, nil
}

func newTestAuditService() *AuditService {
	return NewAuditService(&fakeAuditRepo{}, newTestCollector(), zap.NewNop())
}

// The default Prometheus registry rejects duplicate registration, so all
// tests share one collector.
var (
	testCollectorOnce sync.Once
	testCollector     *metrics.Collector
)

func newTestCollector() *metrics.Collector {
	testCollectorOnce.Do(func() {
		testCollector = metrics.NewCollector("claimsgate_test")
	})
	return testCollector
}
