// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"fmt"
	"strings"

	dto "github.com/prometheus/client_model/go"
)

// Sample is one labelled series in a snapshot.
//
// Counters and gauges carry Value. Histograms carry Count and Sum.
type Sample struct {
	Type   string            `json:"type"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
	Count  uint64            `json:"count,omitempty"`
	Sum    float64           `json:"sum,omitempty"`
}

// Snapshot returns the current value of every metric keyed by name.
func (m *Metrics) Snapshot() (map[string][]Sample, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string][]Sample, len(families))
	for _, fam := range families {
		kind := strings.ToLower(fam.GetType().String())
		samples := make([]Sample, 0, len(fam.GetMetric()))
		for _, metric := range fam.GetMetric() {
			s := Sample{Type: kind, Labels: labels(metric.GetLabel())}
			switch fam.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				s.Value = metric.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				h := metric.GetHistogram()
				s.Count = h.GetSampleCount()
				s.Sum = h.GetSampleSum()
				s.Value = float64(s.Count)
			default:
				s.Value = metric.GetUntyped().GetValue()
			}
			samples = append(samples, s)
		}
		out[fam.GetName()] = samples
	}
	return out, nil
}

func labels(pairs []*dto.LabelPair) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.GetName()] = p.GetValue()
	}
	return out
}
