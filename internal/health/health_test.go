package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy(ctx context.Context) CheckResult { return CheckResult{Status: StatusHealthy} }

func failing(ctx context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} }

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		critical Check
		optional Check
		want     Status
	}{
		{"all healthy", healthy, healthy, StatusHealthy},
		{"optional failing", healthy, failing, StatusDegraded},
		{"critical failing", failing, healthy, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterFunc("critical", true, tt.critical)
			c.RegisterFunc("optional", false, tt.optional)
			c.Check(context.Background())
			if got := c.OverallStatus(); got != tt.want {
				t.Errorf("OverallStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnknownBeforeCheck(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("journal", true, healthy)
	if got := c.OverallStatus(); got != StatusUnknown {
		t.Errorf("OverallStatus() = %s, want %s", got, StatusUnknown)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:     "slow",
		Critical: true,
		Timeout:  20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})

	results := c.Check(context.Background())
	if results["slow"].Message != "check timed out" {
		t.Errorf("message = %q, want timeout", results["slow"].Message)
	}
	if c.OverallStatus() != StatusUnhealthy {
		t.Errorf("OverallStatus() = %s", c.OverallStatus())
	}
}

func TestCheckPanic(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("bad", true, func(ctx context.Context) CheckResult { panic("boom") })

	r := c.Report(context.Background())
	if r.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", r.Status)
	}
	if r.Components["bad"].Error != "boom" {
		t.Errorf("Error = %q, want boom", r.Components["bad"].Error)
	}
}

func TestDatabaseCheck(t *testing.T) {
	ok := DatabaseCheck(pingFunc(func(context.Context) error { return nil }))(context.Background())
	if ok.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", ok.Status)
	}

	bad := DatabaseCheck(pingFunc(func(context.Context) error { return errors.New("locked") }))(context.Background())
	if bad.Status != StatusUnhealthy || bad.Error != "locked" {
		t.Errorf("got %+v", bad)
	}
}

func TestCustomCheck(t *testing.T) {
	if r := CustomCheck(func() error { return nil })(context.Background()); r.Status != StatusHealthy {
		t.Errorf("Status = %s", r.Status)
	}
	if r := CustomCheck(func() error { return errors.New("x") })(context.Background()); r.Status != StatusUnhealthy {
		t.Errorf("Status = %s", r.Status)
	}
}

func TestNames(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("schemas", true, healthy)
	c.RegisterFunc("config", true, healthy)
	got := c.Names()
	if len(got) != 2 || got[0] != "config" || got[1] != "schemas" {
		t.Errorf("Names() = %v", got)
	}
}
