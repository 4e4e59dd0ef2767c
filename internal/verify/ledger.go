package verify

import (
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/metrics"
)

// Stats summarizes the ledger's token population, derived by scanning so
// there are no separate counters to keep in sync.
type Stats struct {
	Pending  int `json:"pending"`
	Verified int `json:"verified"`
	Expired  int `json:"expired"`
}

type pairKey struct {
	subjectID  int64
	resourceID int64
}

// Ledger tracks outstanding verification tokens and each subject's access
// window. All mutation goes through its methods; challenge issuance from
// delivery requests and resolution from redirect events race here, and the
// mutex plus the terminal-state check make each token resolve exactly once.
type Ledger struct {
	mu           sync.Mutex
	tokens       map[string]*Token
	live         map[pairKey]string
	lastVerified map[int64]time.Time

	issuer  *Issuer
	ttl     time.Duration
	window  time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewLedger creates a Ledger issuing tokens with the given ttl and access
// windows of the given duration.
func NewLedger(ttl, window time.Duration, m *metrics.Metrics) *Ledger {
	return &Ledger{
		tokens:       make(map[string]*Token),
		live:         make(map[pairKey]string),
		lastVerified: make(map[int64]time.Time),
		issuer:       NewIssuer(),
		ttl:          ttl,
		window:       window,
		now:          time.Now,
		logger:       slog.Default().With("component", "verification-ledger"),
		metrics:      m,
	}
}

// WindowOpen reports whether the subject verified within the window duration.
func (l *Ledger) WindowOpen(subjectID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windowOpenLocked(subjectID)
}

func (l *Ledger) windowOpenLocked(subjectID int64) bool {
	last, ok := l.lastVerified[subjectID]
	open := ok && l.now().Sub(last) < l.window
	if l.metrics != nil {
		result := "closed"
		if open {
			result = "open"
		}
		l.metrics.WindowChecksTotal.WithLabelValues(result).Inc()
	}
	return open
}

// WindowRemaining returns how long the subject's window stays open; zero when
// it is closed.
func (l *Ledger) WindowRemaining(subjectID int64) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.lastVerified[subjectID]
	if !ok {
		return 0
	}
	remaining := l.window - l.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RequestChallenge issues and records a pending token for the pair. A live
// token already outstanding for the same pair is invalidated first: one
// verification link at a time.
func (l *Ledger) RequestChallenge(subjectID, resourceID int64) (*Token, error) {
	tok, err := l.issuer.Issue(subjectID, resourceID, l.ttl)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := pairKey{subjectID: subjectID, resourceID: resourceID}
	if old, ok := l.live[key]; ok {
		if prev, exists := l.tokens[old]; exists && !prev.Terminal() {
			prev.Expired = true
		}
	}
	l.tokens[tok.Value] = tok
	l.live[key] = tok.Value

	if l.metrics != nil {
		l.metrics.TokensIssuedTotal.Inc()
	}
	l.logger.Info("challenge issued",
		"subject_id", subjectID,
		"resource_id", resourceID,
		"expires_at", tok.ExpiresAt,
	)
	return tok, nil
}

// ResolveChallenge consumes a token carried by a redirect-followed event.
// Unknown or terminal tokens fail with ErrNotFound; overdue ones are marked
// expired and fail with ErrTokenExpired. On success the token becomes
// verified and the subject's window opens from now. Resolving the same token
// twice cannot double-count: the second call sees a terminal token.
func (l *Ledger) ResolveChallenge(value string) (subjectID, resourceID int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tok, ok := l.tokens[value]
	if !ok || tok.Terminal() {
		if l.metrics != nil {
			l.metrics.TokensResolvedTotal.WithLabelValues("not_found").Inc()
		}
		return 0, 0, apperrors.New(apperrors.ErrNotFound, 404, "unknown or already used verification token")
	}

	now := l.now().UTC()
	if !now.Before(tok.ExpiresAt) {
		tok.Expired = true
		delete(l.live, pairKey{subjectID: tok.SubjectID, resourceID: tok.ResourceID})
		if l.metrics != nil {
			l.metrics.TokensResolvedTotal.WithLabelValues("expired").Inc()
		}
		return 0, 0, apperrors.New(apperrors.ErrTokenExpired, 410, "verification link expired, request a new one")
	}

	tok.VerifiedAt = &now
	l.lastVerified[tok.SubjectID] = now
	delete(l.live, pairKey{subjectID: tok.SubjectID, resourceID: tok.ResourceID})

	if l.metrics != nil {
		l.metrics.TokensResolvedTotal.WithLabelValues("verified").Inc()
	}
	l.logger.Info("subject verified",
		"subject_id", tok.SubjectID,
		"resource_id", tok.ResourceID,
	)
	return tok.SubjectID, tok.ResourceID, nil
}

// Stats scans the token table and returns pending/verified/expired counts.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	var s Stats
	for _, tok := range l.tokens {
		switch {
		case tok.VerifiedAt != nil:
			s.Verified++
		case tok.Expired:
			s.Expired++
		default:
			s.Pending++
		}
	}
	return s
}

// SweepExpired marks every overdue pending token expired and returns how many
// were swept. Run periodically so stats reflect reality even for tokens whose
// redirect never arrived.
func (l *Ledger) SweepExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	swept := 0
	for _, tok := range l.tokens {
		if tok.Terminal() || now.Before(tok.ExpiresAt) {
			continue
		}
		tok.Expired = true
		delete(l.live, pairKey{subjectID: tok.SubjectID, resourceID: tok.ResourceID})
		swept++
	}
	if swept > 0 {
		l.logger.Info("expired pending tokens swept", "count", swept)
	}
	return swept
}
