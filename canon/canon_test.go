package canon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "umbra/internal/errors"
)

const validJSON = `{
  "version": "test",
  "action_economy": {"illuminate_per_turn": 1, "other_actions_per_turn": 1, "moves_pre_collapse": 1, "moves_during_collapse": 2},
  "collapse": {"timer_base": 3, "timer_cap": 5, "spark_chance": 0.75, "aidron_auto_protocol": true},
  "tokens": {"uses": ["spark_bridge_pre_collapse", "unfile_during_collapse"]}
}`

func writeCanon(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canon.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write canon: %v", err)
	}
	return path
}

func TestDefaultCanonIsValid(t *testing.T) {
	c := Default()
	if err := ValidateSchema(c); err != nil {
		t.Fatalf("default canon invalid: %v", err)
	}
	if got, want := c.MovesPerTurn(true), 2; got != want {
		t.Errorf("MovesPerTurn(true) = %d, want %d", got, want)
	}
	if got, want := c.MovesPerTurn(false), 1; got != want {
		t.Errorf("MovesPerTurn(false) = %d, want %d", got, want)
	}
}

func TestParseAppliesOptionalDefaults(t *testing.T) {
	c, err := Parse([]byte(validJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Tokens.StartingPerPlayer != 1 {
		t.Errorf("starting_per_player = %d, want 1", c.Tokens.StartingPerPlayer)
	}
	if c.Lighting.IlluminateRounds != 2 {
		t.Errorf("illuminate_rounds = %d, want 2", c.Lighting.IlluminateRounds)
	}
	if c.Noise.Signal != 2 {
		t.Errorf("noise.signal = %d, want 2", c.Noise.Signal)
	}
}

func TestTimerCapAboveMaxFailsValidation(t *testing.T) {
	body := strings.Replace(validJSON, `"timer_cap": 5`, `"timer_cap": 6`, 1)
	_, err := LoadVerified(writeCanon(t, body))
	if err == nil {
		t.Fatal("expected schema violation for timer_cap=6")
	}
	if !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("got %v, want schema violation", err)
	}
	if !strings.Contains(err.Error(), "collapse.timer_cap") {
		t.Errorf("error %q does not name the key", err)
	}
}

func TestMissingRequiredKeyFails(t *testing.T) {
	body := strings.Replace(validJSON, `"aidron_auto_protocol": true`, `"extra": 1`, 1)
	_, err := Parse([]byte(body))
	if apperrors.CodeOf(err) != apperrors.CodeSchemaViolation {
		t.Fatalf("got %v, want schema violation", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("error is not *apperrors.Error: %T", err)
	}
	if got := appErr.Metadata["missing"]; got != "collapse.aidron_auto_protocol" {
		t.Errorf("missing = %q, want collapse.aidron_auto_protocol", got)
	}
}

func TestValidateSchemaRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Canon)
		ok     bool
	}{
		{name: "default", mutate: func(*Canon) {}, ok: true},
		{name: "cap at min", mutate: func(c *Canon) { c.Collapse.TimerCap = 3 }, ok: true},
		{name: "cap below min", mutate: func(c *Canon) { c.Collapse.TimerCap = 2 }},
		{name: "spark low edge", mutate: func(c *Canon) { c.Collapse.SparkChance = 0.70 }, ok: true},
		{name: "spark too low", mutate: func(c *Canon) { c.Collapse.SparkChance = 0.69 }},
		{name: "spark too high", mutate: func(c *Canon) { c.Collapse.SparkChance = 0.81 }},
		{name: "wrong moves", mutate: func(c *Canon) { c.ActionEconomy.MovesDuringCollapse = 3 }},
		{name: "protocol off", mutate: func(c *Canon) { c.Collapse.AidronAutoProtocol = false }},
		{name: "missing token use", mutate: func(c *Canon) { c.Tokens.Uses = []TokenUse{TokenSparkBridge} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := ValidateSchema(c)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrSchemaViolation) {
				t.Fatalf("got %v, want schema violation", err)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := Default()
	cp := c.Clone()
	cp.Tokens.Uses[0] = "other"
	if c.Tokens.Uses[0] != TokenSparkBridge {
		t.Fatal("clone shares token uses slice")
	}
}

func TestRegistryReloadKeepsPreviousOnFailure(t *testing.T) {
	reg := NewRegistry(Default())
	before := reg.Current()

	bad := strings.Replace(validJSON, `"timer_cap": 5`, `"timer_cap": 9`, 1)
	got, err := reg.Reload(context.Background(), writeCanon(t, bad))
	if err == nil {
		t.Fatal("expected reload failure")
	}
	if got != before || reg.Current() != before {
		t.Fatal("registry swapped canon after failed reload")
	}

	good := strings.Replace(validJSON, `"timer_cap": 5`, `"timer_cap": 4`, 1)
	got, err = reg.Reload(context.Background(), writeCanon(t, good))
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got.Collapse.TimerCap != 4 || reg.Current().Collapse.TimerCap != 4 {
		t.Errorf("timer_cap = %d, want 4", reg.Current().Collapse.TimerCap)
	}
}

func TestVerifierRecordsDrift(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewVerifier().WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	if !v.CheckInvariant(ctx, "moves", 2, 2) {
		t.Error("equal values reported as drift")
	}
	if v.CheckInvariant(ctx, "moves", 3, 2) {
		t.Error("mismatch not reported")
	}
	if got := v.ClampRange(ctx, "timer", 7, 0, 5); got != 5 {
		t.Errorf("ClampRange = %d, want 5", got)
	}
	if got := v.ClampRange(ctx, "timer", 4, 0, 5); got != 4 {
		t.Errorf("ClampRange = %d, want 4", got)
	}

	drifts := v.Drifts()
	if len(drifts) != 2 {
		t.Fatalf("drifts = %d, want 2", len(drifts))
	}
	if !drifts[1].Clamped || !drifts[1].At.Equal(fixed) {
		t.Errorf("unexpected drift %+v", drifts[1])
	}
}

func TestVerifierSparkRateMonitor(t *testing.T) {
	ctx := context.Background()

	inBand := NewVerifier()
	for i := range 400 {
		inBand.ObserveSpark(ctx, i%4 != 0) // 0.75
	}
	if n := len(inBand.Drifts()); n != 0 {
		t.Fatalf("in-band rate produced %d drifts", n)
	}

	low := NewVerifier()
	for i := range 399 {
		low.ObserveSpark(ctx, i%2 == 0)
	}
	if n := len(low.Drifts()); n != 0 {
		t.Fatalf("drift reported before sample minimum: %d", n)
	}
	low.ObserveSpark(ctx, false)
	if n := len(low.Drifts()); n != 1 {
		t.Fatalf("drifts = %d, want 1", n)
	}
	if rolls, _ := low.SparkStats(); rolls != 400 {
		t.Errorf("rolls = %d, want 400", rolls)
	}
}

func TestRunPeriodicStopsOnCancel(t *testing.T) {
	v := NewVerifier()
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 8)
	done := make(chan struct{})
	go func() {
		v.RunPeriodic(ctx, time.Millisecond, func(context.Context) {
			select {
			case calls <- struct{}{}:
			default:
			}
		})
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not return after cancel")
	}
}
