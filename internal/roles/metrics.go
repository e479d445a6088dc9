package roles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RoleChangesTotal counts committed role changes by the role assigned.
var RoleChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "rolewarden",
		Subsystem: "roles",
		Name:      "changes_total",
		Help:      "Number of committed role changes by new role",
	},
	[]string{"new_role"},
)
