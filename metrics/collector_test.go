package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/flowmesh/arq"
)

func TestSessionCollectorCollect(t *testing.T) {
	c := NewSessionCollector("arq_test", []string{"peer"})
	s := arq.NewSession(1, arq.Config{})
	c.Add(1, s, []string{"127.0.0.1:9000"})

	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)

	count := 0
	for m := range ch {
		var d dto.Metric
		if err := m.Write(&d); err != nil {
			t.Fatal(err)
		}
		count++
	}
	if count != 7 {
		t.Fatalf("got %d metrics, want 7", count)
	}
}

func TestSessionCollectorRemove(t *testing.T) {
	c := NewSessionCollector("arq_test2", nil)
	s := arq.NewSession(2, arq.Config{})
	c.Add(2, s, nil)
	c.Remove(2)

	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)
	for range ch {
		t.Fatal("expected no metrics after Remove")
	}
}
