package canon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// sparkSampleMin はスパーク成功率を判定し始める最小試行数です。
	sparkSampleMin = 400
	// sparkCheckEvery はスパーク成功率を再判定する試行間隔です。
	sparkCheckEvery = 100
)

// Drift はライブ状態とcanonの期待値のずれを記録したものです。
type Drift struct {
	Name     string
	Observed any
	Expected any
	Clamped  bool
	At       time.Time
}

func (d Drift) String() string {
	return fmt.Sprintf("%s: observed=%v expected=%v clamped=%t", d.Name, d.Observed, d.Expected, d.Clamped)
}

// Verifier は実行時の不変条件チェックを行い、ずれを記録します。
// 起動後は帯域外のプローブからも呼ばれるため、並行呼び出しに対して安全です。
type Verifier struct {
	mu     sync.Mutex
	drifts []Drift
	clk    func() time.Time

	sparkRolls int
	sparkHits  int
}

func NewVerifier() *Verifier {
	return &Verifier{clk: time.Now}
}

// WithClock はテスト用に時間ソースを差し替えます。
func (v *Verifier) WithClock(clock func() time.Time) *Verifier {
	if clock != nil {
		v.clk = clock
	}
	return v
}

// CheckInvariant はobservedとexpectedを比較し、一致しなければずれを記録します。
// 値の補正は行いません。
func (v *Verifier) CheckInvariant(ctx context.Context, name string, observed, expected any) bool {
	if observed == expected {
		return true
	}
	v.record(ctx, Drift{Name: name, Observed: observed, Expected: expected})
	return false
}

// ClampRange はobservedが[lo, hi]を外れていればずれを記録し、境界値に丸めて返します。
// fail-closedが定められた不変条件（崩壊タイマーなど）専用です。
func (v *Verifier) ClampRange(ctx context.Context, name string, observed, lo, hi int) int {
	switch {
	case observed > hi:
		v.record(ctx, Drift{Name: name, Observed: observed, Expected: fmt.Sprintf("<= %d", hi), Clamped: true})
		return hi
	case observed < lo:
		v.record(ctx, Drift{Name: name, Observed: observed, Expected: fmt.Sprintf(">= %d", lo), Clamped: true})
		return lo
	default:
		return observed
	}
}

// ObserveSpark は移動スパークの判定結果を積算し、十分な試行が溜まるたびに成功率を検査します。
func (v *Verifier) ObserveSpark(ctx context.Context, hit bool) {
	v.mu.Lock()
	v.sparkRolls++
	if hit {
		v.sparkHits++
	}
	rolls, hits := v.sparkRolls, v.sparkHits
	v.mu.Unlock()

	if rolls < sparkSampleMin || rolls%sparkCheckEvery != 0 {
		return
	}
	rate := float64(hits) / float64(rolls)
	if rate < SparkChanceMin || rate > SparkChanceMax {
		v.record(ctx, Drift{
			Name:     "collapse.spark_rate",
			Observed: rate,
			Expected: fmt.Sprintf("[%.2f, %.2f]", SparkChanceMin, SparkChanceMax),
		})
	}
}

// SparkStats は積算済みのスパーク試行数と成功数を返します。
func (v *Verifier) SparkStats() (rolls, hits int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sparkRolls, v.sparkHits
}

// Drifts は記録されたずれのコピーを返します。
func (v *Verifier) Drifts() []Drift {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Drift, len(v.drifts))
	copy(out, v.drifts)
	return out
}

// RunPeriodic はinterval間隔でcheckを呼び出す帯域外チェックです。ctxがキャンセルされると終了します。
func (v *Verifier) RunPeriodic(ctx context.Context, interval time.Duration, check func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check(ctx)
		}
	}
}

func (v *Verifier) record(ctx context.Context, d Drift) {
	v.mu.Lock()
	d.At = v.clk()
	v.drifts = append(v.drifts, d)
	v.mu.Unlock()
	slog.WarnContext(ctx, "canon: invariant drift", "name", d.Name, "observed", d.Observed, "expected", d.Expected, "clamped", d.Clamped)
}
