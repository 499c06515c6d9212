package usecase

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/V4T54L/adru-export/internal/domain"
)

func attributeSet(pairs map[string][]string) domain.AttributeSet {
	set := domain.NewAttributeSet()
	for ns, names := range pairs {
		set.Ensure(ns)
		for _, n := range names {
			set.Add(ns, n)
		}
	}
	return set
}

func TestReconcile(t *testing.T) {
	master := attributeSet(map[string][]string{
		domain.NamespaceJRU:  {"NID_C", "FOO"},
		domain.NamespaceETCS: {"NID_PACKET"},
		domain.NamespaceDRU:  {},
	})

	tests := []struct {
		name     string
		observed domain.AttributeSet
		want     domain.Drift
	}{
		{
			name:     "subset has no drift",
			observed: attributeSet(map[string][]string{domain.NamespaceJRU: {"FOO"}, domain.NamespaceETCS: {}}),
			want:     nil,
		},
		{
			name:     "equal has no drift",
			observed: attributeSet(map[string][]string{domain.NamespaceJRU: {"FOO", "NID_C"}, domain.NamespaceETCS: {"NID_PACKET"}}),
			want:     nil,
		},
		{
			name: "exactly the unknown attributes, sorted",
			observed: attributeSet(map[string][]string{
				domain.NamespaceJRU: {"ZED", "FOO", "ALPHA"},
				domain.NamespaceDRU: {"GPS_VALIDITY"},
			}),
			want: domain.Drift{
				{Namespace: domain.NamespaceDRU, Attributes: []string{"GPS_VALIDITY"}},
				{Namespace: domain.NamespaceJRU, Attributes: []string{"ALPHA", "ZED"}},
			},
		},
		{
			name:     "namespace without master entry",
			observed: attributeSet(map[string][]string{"gps": {"LAT"}}),
			want:     domain.Drift{{Namespace: "gps", Attributes: []string{"LAT"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.observed, master)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("drift mismatch (-want +got):\n%s", diff)
			}
			if (got.Err() == nil) != got.Empty() {
				t.Errorf("Err() and Empty() disagree for %v", got)
			}
		})
	}
}
