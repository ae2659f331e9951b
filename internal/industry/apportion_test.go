package industry

import (
	"errors"
	"math"
	"testing"
)

func uniformShares() EmploymentShares {
	shares := make(EmploymentShares, 19)
	for _, d := range Divisions() {
		shares[d] = 1.0 / 19.0
	}
	return shares
}

func TestEmploymentShares_ValidVector(t *testing.T) {
	if err := uniformShares().Validate(); err != nil {
		t.Fatalf("uniform shares should validate: %v", err)
	}
}

func TestEmploymentShares_SumOutOfTolerance(t *testing.T) {
	shares := uniformShares()
	shares["A"] += 0.01
	var cfgErr *ConfigError
	if err := shares.Validate(); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for bad sum, got %v", err)
	}
}

func TestEmploymentShares_MissingDivision(t *testing.T) {
	shares := uniformShares()
	delete(shares, "S")
	if err := shares.Validate(); err == nil {
		t.Fatal("expected error for missing division")
	}
}

func TestEmploymentShares_NegativeShare(t *testing.T) {
	shares := uniformShares()
	shares["A"] = -1.0 / 19.0
	shares["B"] = 3.0 / 19.0
	if err := shares.Validate(); err == nil {
		t.Fatal("expected error for negative share")
	}
}

func TestEmploymentShares_SentinelRejected(t *testing.T) {
	shares := uniformShares()
	shares["A"] -= 0.05
	shares[CrossCutting] = 0.05
	if err := shares.Validate(); err == nil {
		t.Fatal("expected error for sentinel division in vector")
	}
}

func TestApportion_PreservesTotal(t *testing.T) {
	shares := uniformShares()
	parts := shares.Apportion(1900)

	if len(parts) != 19 {
		t.Fatalf("expected 19 parts, got %d", len(parts))
	}
	var sum float64
	for _, v := range parts {
		sum += v
	}
	if math.Abs(sum-1900) > 1e-6 {
		t.Errorf("apportioned parts sum to %g, want 1900", sum)
	}
	if math.Abs(parts["A"]-100) > 1e-9 {
		t.Errorf("uniform share of 1900 should be 100 per division, got %g", parts["A"])
	}
}
