package pss

import (
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/Tranquil/internal/models"
)

func TestInterpret(t *testing.T) {
	for _, band := range []models.SeverityBand{models.BandLow, models.BandModerate, models.BandHigh} {
		in, ok := Interpret(band)
		if !ok {
			t.Fatalf("Interpret(%s) not found", band)
		}
		if in.Band != band || in.Summary == "" || in.Color == "" {
			t.Errorf("incomplete interpretation for %s: %+v", band, in)
		}
	}
	high, _ := Interpret(models.BandHigh)
	if !strings.Contains(high.Summary, "professional support") {
		t.Errorf("high summary should mention professional support: %q", high.Summary)
	}
	if _, ok := Interpret("unknown"); ok {
		t.Error("expected unknown band to be missing")
	}
}

func recordsAt(base time.Time, scores ...int) []models.ScoreRecord {
	out := make([]models.ScoreRecord, len(scores))
	for i, s := range scores {
		band, _ := Classify(s)
		out[i] = models.ScoreRecord{UserID: "u", Score: s, Band: band, CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour)}
	}
	return out
}

func TestTrend_WindowAndOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := recordsAt(base, 30, 28, 25, 22, 20, 18, 15, 12, 10)

	// shuffle the input to check the function does its own ordering
	shuffled := []models.ScoreRecord{recs[4], recs[8], recs[0], recs[2], recs[6], recs[1], recs[7], recs[3], recs[5]}

	res := Trend(shuffled, 0)
	if len(res.Points) != DefaultTrendWindow {
		t.Fatalf("expected %d points, got %d", DefaultTrendWindow, len(res.Points))
	}
	wantScores := []int{25, 22, 20, 18, 15, 12, 10}
	for i, p := range res.Points {
		if p.Score != wantScores[i] {
			t.Errorf("point %d score = %d, want %d", i, p.Score, wantScores[i])
		}
	}
	if res.Direction != DirectionImproving || res.Delta != -15 {
		t.Errorf("direction = %s delta = %d, want improving -15", res.Direction, res.Delta)
	}
}

func TestTrend_Directions(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if res := Trend(recordsAt(base, 10, 20), 7); res.Direction != DirectionWorsening {
		t.Errorf("expected worsening, got %s", res.Direction)
	}
	if res := Trend(recordsAt(base, 15, 30, 15), 7); res.Direction != DirectionStable {
		t.Errorf("expected stable, got %s", res.Direction)
	}
	if res := Trend(recordsAt(base, 15), 7); res.Direction != DirectionStable || len(res.Points) != 1 {
		t.Errorf("single point should be stable: %+v", res)
	}
	if res := Trend(nil, 7); len(res.Points) != 0 {
		t.Errorf("expected no points, got %d", len(res.Points))
	}
}
