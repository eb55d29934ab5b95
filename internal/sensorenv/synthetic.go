package sensorenv

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/banshee-data/tunnel.report/internal/recording"
	"github.com/banshee-data/tunnel.report/internal/sensor"
	"github.com/banshee-data/tunnel.report/internal/timeutil"
)

// Profile selects the motion pattern produced by Synthetic.Run.
type Profile string

const (
	ProfileStill   Profile = "still"
	ProfileWalking Profile = "walking"
	ProfileTunnel  Profile = "tunnel"
)

// ParseProfile validates a profile name.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(s); p {
	case ProfileStill, ProfileWalking, ProfileTunnel:
		return p, nil
	}
	return "", fmt.Errorf("unknown synthetic profile %q: expected still, walking or tunnel", s)
}

// profileShape is the amplitude of the acceleration signal and how often
// (every n ticks) an orientation event accompanies it.
type profileShape struct {
	amplitude        float64
	noise            float64
	orientationEvery int
}

var shapes = map[Profile]profileShape{
	ProfileStill:   {amplitude: 0, noise: 0.02, orientationEvery: 20},
	ProfileWalking: {amplitude: 1.2, noise: 0.2, orientationEvery: 6},
	ProfileTunnel:  {amplitude: 1.5, noise: 0.4, orientationEvery: 2},
}

// Synthetic is an in-process SensorEnvironment. Events are injected with
// EmitMotion/EmitOrientation or generated by Run.
type Synthetic struct {
	d *dispatcher

	mu            sync.Mutex
	permission    recording.Permission
	permissionErr error
	profile       Profile
	rng           *rand.Rand
}

// NewSynthetic returns a synthetic source that needs no permission and
// generates the still profile.
func NewSynthetic() *Synthetic {
	return &Synthetic{
		d:          newDispatcher(),
		permission: recording.PermissionNotRequired,
		profile:    ProfileStill,
		rng:        rand.New(rand.NewPCG(1, 2)),
	}
}

// SetPermission scripts the next permission answers.
func (s *Synthetic) SetPermission(p recording.Permission, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permission = p
	s.permissionErr = err
}

// SetProfile switches the generated motion pattern.
func (s *Synthetic) SetProfile(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

func (s *Synthetic) RequestMotionPermission(ctx context.Context) (recording.Permission, error) {
	if err := ctx.Err(); err != nil {
		return recording.PermissionDenied, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission, s.permissionErr
}

func (s *Synthetic) SubscribeMotion(h func(*sensor.MotionEvent)) (recording.Subscription, error) {
	return s.d.subscribeMotion(h), nil
}

func (s *Synthetic) SubscribeOrientation(h func(*sensor.OrientationEvent)) (recording.Subscription, error) {
	return s.d.subscribeOrientation(h), nil
}

// EmitMotion delivers ev to the current motion subscribers synchronously.
func (s *Synthetic) EmitMotion(ev *sensor.MotionEvent) {
	s.d.dispatch(sensor.MotionEventOf(ev))
}

// EmitOrientation delivers ev to the current orientation subscribers
// synchronously.
func (s *Synthetic) EmitOrientation(ev *sensor.OrientationEvent) {
	s.d.dispatch(sensor.OrientationEventOf(ev))
}

// Subscriptions returns the number of attached handlers.
func (s *Synthetic) Subscriptions() int { return s.d.count() }

// MaxRateHz is the fastest generator rate; one event per millisecond.
const MaxRateHz = 1000

// ValidateRate rejects generator rates that cannot drive a ticker.
func ValidateRate(rateHz float64) error {
	if math.IsNaN(rateHz) || rateHz <= 0 || rateHz > MaxRateHz {
		return fmt.Errorf("synthetic rate must be in (0, %d] Hz, got %v", MaxRateHz, rateHz)
	}
	return nil
}

// Run generates events at rateHz until ctx is done.
func (s *Synthetic) Run(ctx context.Context, clock timeutil.Clock, rateHz float64) error {
	if err := ValidateRate(rateHz); err != nil {
		return err
	}
	interval := time.Duration(float64(time.Second) / rateHz)
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			motion, orientation := s.next(tick, interval)
			s.EmitMotion(motion)
			if orientation != nil {
				s.EmitOrientation(orientation)
			}
		}
	}
}

// next builds the events for one tick.
func (s *Synthetic) next(tick int, interval time.Duration) (*sensor.MotionEvent, *sensor.OrientationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shape := shapes[s.profile]

	phase := float64(tick) * interval.Seconds() * 2 * math.Pi * 1.8 // ~1.8 Hz gait
	axis := func(offset float64) *float64 {
		v := shape.amplitude*math.Sin(phase+offset) + shape.noise*(s.rng.Float64()*2-1)
		return &v
	}
	gravityZ := 9.81
	intervalMs := float64(interval.Milliseconds())

	motion := &sensor.MotionEvent{
		Acceleration:                 &sensor.RawVector3{X: axis(0), Y: axis(2.1), Z: axis(4.2)},
		AccelerationIncludingGravity: &sensor.RawVector3{X: axis(0), Y: axis(2.1), Z: &gravityZ},
		RotationRate:                 &sensor.RawRotation{Alpha: axis(1), Beta: axis(3), Gamma: axis(5)},
		Interval:                     &intervalMs,
	}
	if shape.orientationEvery <= 0 || tick%shape.orientationEvery != 0 {
		return motion, nil
	}
	alpha := math.Mod(float64(tick)*3, 360)
	beta := 10 * math.Sin(phase)
	gamma := 5 * math.Cos(phase)
	absolute := false
	return motion, &sensor.OrientationEvent{Alpha: &alpha, Beta: &beta, Gamma: &gamma, Absolute: &absolute}
}
