package usecase

import "github.com/V4T54L/adru-export/internal/domain"

// Reconcile compares the attributes observed in an artifact with the master
// vocabulary. For every namespace it lists, sorted, the observed names the
// master lacks. A namespace unknown to the master drifts with all of its
// names. The result is empty when observed is contained in master.
func Reconcile(observed, master domain.AttributeSet) domain.Drift {
	var drift domain.Drift
	for _, ns := range observed.Namespaces() {
		var missing []string
		for _, name := range observed.Sorted(ns) {
			if !master.Contains(ns, name) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			drift = append(drift, domain.NamespaceDrift{Namespace: ns, Attributes: missing})
		}
	}
	return drift
}
