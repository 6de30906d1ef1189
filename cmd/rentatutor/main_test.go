package main

import (
	"strconv"
	"strings"
	"testing"

	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
)

func TestTierChoices(t *testing.T) {
	if got := tierChoices(); got != "10, 20 or 30" {
		t.Errorf("tierChoices() = %q, want %q", got, "10, 20 or 30")
	}
}

func TestSimulateMinutesFlag(t *testing.T) {
	f := simulateCmd().Flags().Lookup("minutes")
	if f == nil {
		t.Fatal("simulate has no --minutes flag")
	}
	for _, tier := range model.PriceTiers {
		if !strings.Contains(f.Usage, strconv.Itoa(tier.Minutes)) {
			t.Errorf("usage %q does not offer %d minutes", f.Usage, tier.Minutes)
		}
	}

	def, err := strconv.Atoi(f.DefValue)
	if err != nil {
		t.Fatalf("default %q: %v", f.DefValue, err)
	}
	if _, err := market.NewSessionRequest("Mathematics", def); err != nil {
		t.Errorf("default of %d minutes is rejected: %v", def, err)
	}
}
