package recognition

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DefaultThreshold is the largest LBPH distance still accepted as a match.
const DefaultThreshold = 65.0

// Match is the outcome of matching one face.
type Match struct {
	Identity Identity
	Label    int
	Distance float64
	// Accepted is true when the distance is below threshold and the label
	// maps to an enrolled subject.
	Accepted bool
}

// TrainingSet is the input to a reload: one or more faces per label plus
// the label to identity table.
type TrainingSet struct {
	Faces  []gocv.Mat
	Labels []int
	Table  map[int]Identity
}

// model is swapped as a unit so readers never see a partial reload.
type model struct {
	rec   Recognizer
	table map[int]Identity
}

// Matcher applies a distance threshold over a reloadable Recognizer.
type Matcher struct {
	threshold float64
	factory   Factory
	logger    *zap.Logger

	mu    sync.RWMutex
	model model

	untrainedLogged atomic.Bool

	hooksMu  sync.Mutex
	onReload []func()
}

// NewMatcher creates a Matcher with no trained model.
func NewMatcher(factory Factory, threshold float64, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{
		threshold: threshold,
		factory:   factory,
		logger:    logger,
	}
}

// OnReload registers fn to run after every successful reload.
func (m *Matcher) OnReload(fn func()) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.onReload = append(m.onReload, fn)
}

// Trained reports whether a model is loaded.
func (m *Matcher) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.model.rec != nil
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match predicts the identity of a cropped grayscale face.
// It returns ErrModelNotTrained when no model is loaded.
func (m *Matcher) Match(face gocv.Mat) (Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.model.rec == nil {
		if m.untrainedLogged.CompareAndSwap(false, true) {
			m.logger.Warn("recognizer has no trained model, every face is unknown")
		}
		return Match{}, ErrModelNotTrained
	}

	label, distance, err := m.model.rec.Predict(face)
	if err != nil {
		return Match{}, fmt.Errorf("predict: %w", err)
	}

	result := Match{Label: label, Distance: distance}
	if identity, ok := m.model.table[label]; ok && distance < m.threshold {
		result.Identity = identity
		result.Accepted = true
	}
	return result, nil
}

// Reload trains a fresh recognizer on set and swaps it in atomically.
// An empty set leaves the matcher untrained. Reload hooks run after the swap.
func (m *Matcher) Reload(set TrainingSet) error {
	if len(set.Faces) != len(set.Labels) {
		return ErrTrainingMismatch
	}

	next := model{table: make(map[int]Identity, len(set.Table))}
	for label, identity := range set.Table {
		next.table[label] = identity
	}

	if len(set.Faces) > 0 {
		rec := m.factory()
		if err := rec.Train(set.Faces, set.Labels); err != nil {
			rec.Close()
			return fmt.Errorf("train recognizer: %w", err)
		}
		next.rec = rec
	}

	m.mu.Lock()
	prev := m.model
	m.model = next
	m.mu.Unlock()

	m.untrainedLogged.Store(false)

	if prev.rec != nil && prev.rec != next.rec {
		if err := prev.rec.Close(); err != nil {
			m.logger.Warn("close previous recognizer", zap.Error(err))
		}
	}

	if next.rec == nil {
		m.logger.Warn("recognizer reloaded without samples", zap.Error(ErrModelNotTrained))
	} else {
		m.logger.Info("recognizer reloaded",
			zap.Int("faces", len(set.Faces)),
			zap.Int("subjects", len(next.table)))
	}

	m.hooksMu.Lock()
	hooks := append([]func(){}, m.onReload...)
	m.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}

	return nil
}

// Close releases the current model.
func (m *Matcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model.rec == nil {
		return nil
	}
	err := m.model.rec.Close()
	m.model = model{}
	return err
}

// Close releases the training faces.
func (s TrainingSet) Close() {
	for i := range s.Faces {
		s.Faces[i].Close()
	}
}
