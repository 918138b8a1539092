package usecase

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"KineJump/internal/domain/models"
	"KineJump/internal/services/biomech"
	"KineJump/pkg/config"
)

// SessionAggregator folds completed attempts into the running session
// summary. Cross-protocol indices only appear once both protocols have a
// valid attempt; until then they stay nil rather than reading as zero.
type SessionAggregator struct {
	cfg        *config.Config
	classifier *biomech.Classifier
	athlete    *models.Athlete

	sessionID string
	startedAt time.Time

	attempts []*models.JumpAttempt
	firstTS  float64
	lastTS   float64
	haveTS   bool
}

// NewSessionAggregator starts an empty aggregate for one session.
func NewSessionAggregator(cfg *config.Config, classifier *biomech.Classifier, athlete *models.Athlete, sessionID string, startedAt time.Time) *SessionAggregator {
	return &SessionAggregator{
		cfg:        cfg,
		classifier: classifier,
		athlete:    athlete,
		sessionID:  sessionID,
		startedAt:  startedAt,
	}
}

// Add records one finished attempt, whatever its status.
func (sa *SessionAggregator) Add(a *models.JumpAttempt) {
	sa.attempts = append(sa.attempts, a)
	for _, ev := range a.Phases {
		if !sa.haveTS || ev.Timestamp < sa.firstTS {
			sa.firstTS = ev.Timestamp
		}
		if !sa.haveTS || ev.Timestamp > sa.lastTS {
			sa.lastTS = ev.Timestamp
		}
		sa.haveTS = true
	}
}

// Attempts returns everything recorded so far.
func (sa *SessionAggregator) Attempts() []*models.JumpAttempt {
	return sa.attempts
}

// Summary computes the aggregate over all attempts so far.
func (sa *SessionAggregator) Summary() *models.SessionSummary {
	s := &models.SessionSummary{
		SessionID: sa.sessionID,
		AthleteID: sa.athlete.ID,
		StartedAt: sa.startedAt,
		Total:     len(sa.attempts),
		Faults:    make(map[models.FaultType]int),
	}
	if sa.haveTS {
		s.Duration = sa.lastTS - sa.firstTS
	}

	var heights, powers, flights []float64
	byType := make(map[models.JumpType][]float64)

	for _, a := range sa.attempts {
		for fault, n := range a.Faults {
			s.Faults[fault] += n
		}
		if a.Status != models.AttemptCompleted || a.Metrics == nil {
			continue
		}
		s.Valid++
		if len(a.Faults) == 0 {
			s.Correct++
		}
		heights = append(heights, a.Metrics.HeightM)
		powers = append(powers, a.Metrics.PowerW)
		flights = append(flights, a.Metrics.FlightTime)
		byType[a.Type] = append(byType[a.Type], a.Metrics.HeightM)

		if a.Metrics.HeightM > s.MaxHeightM {
			s.MaxHeightM = a.Metrics.HeightM
		}
	}

	if s.Valid > 0 {
		s.Precision = 100 * float64(s.Correct) / float64(s.Valid)
		s.MeanHeightM = stat.Mean(heights, nil)
		s.MeanPowerW = stat.Mean(powers, nil)
		s.MeanFlightTimeS = stat.Mean(flights, nil)
	}
	if s.Valid > 1 {
		s.HeightStddevM = stat.StdDev(heights, nil)
	}

	sa.crossProtocolIndices(s, byType)
	sa.classify(s, byType)
	return s
}

// crossProtocolIndices computes the elasticity index, how much the
// countermovement adds over a static squat jump, and the coordination
// index, how much the arm swing adds over the plain countermovement jump.
func (sa *SessionAggregator) crossProtocolIndices(s *models.SessionSummary, byType map[models.JumpType][]float64) {
	mean := func(t models.JumpType) (float64, bool) {
		hs := byType[t]
		if len(hs) == 0 {
			return 0, false
		}
		return stat.Mean(hs, nil), true
	}

	cmj, haveCMJ := mean(models.JumpCMJ)
	sqj, haveSQJ := mean(models.JumpSQJ)
	abk, haveABK := mean(models.JumpAbalakov)

	if haveCMJ && haveSQJ && sqj > 0 {
		v := (cmj - sqj) / sqj * 100
		s.ElasticityIndex = &v
	}
	if haveCMJ && haveABK && cmj > 0 {
		v := (abk - cmj) / cmj * 100
		s.CoordinationIndex = &v
	}
}

// classify derives the session-level result from the protocol with the
// most valid attempts, scored with the mean technical score of its
// classified attempts.
func (sa *SessionAggregator) classify(s *models.SessionSummary, byType map[models.JumpType][]float64) {
	var best models.JumpType
	for _, t := range []models.JumpType{models.JumpCMJ, models.JumpSQJ, models.JumpAbalakov} {
		if len(byType[t]) > len(byType[best]) {
			best = t
		}
	}
	if best == "" {
		return
	}

	th, err := sa.cfg.Resolve(sa.athlete.Sex, sa.athlete.Level, best)
	if err != nil {
		return
	}

	var scores []float64
	for _, a := range sa.attempts {
		if a.Type == best && a.Result != nil {
			scores = append(scores, a.Result.TechnicalScore)
		}
	}
	score := 0.0
	if len(scores) > 0 {
		score = stat.Mean(scores, nil)
	}

	s.Result = sa.classifier.Classify(stat.Mean(byType[best], nil), score, th, s.Faults)
	s.Result.Recommendations = append(s.Result.Recommendations,
		biomech.PersonalizedRecommendations(sa.athlete, s.Result.Level, s.Faults)...)
}
