/*
Package experiment provides A/B weight experiments, feature flags, and
in-memory placement analytics.

# Deterministic Assignment

An experiment buckets each request into control or variant with no clock, no
RNG and no process identity - the group is purely a function of the
experiment id and the request's stable name:

	bucket = first32bits(md5("<experiment_id>:<request_name>")) / 0xFFFFFFFF
	group  = variant  if bucket < traffic_fraction
	         control  otherwise

The same (experiment, name) pair therefore always lands in the same group,
across processes and restarts. traffic_fraction of 1.0 always assigns
variant; 0.0 always assigns control.

# Weight Resolution

The scheduler asks the registry for effective weights before scoring:

	weights, info := registry.ResolveWeights(tier.Name, req.Name, tier.Weights)

Experiments are consulted in registration order. Disabled experiments and
experiments whose tier selector (a tier name or "*") does not match are
skipped. The first match assigns the request and resolution stops: variant
substitutes the experiment's weights, control keeps the tier's. Either way
the assignment is recorded in the decision's reason.

# Feature Flags

Flags are a name→bool map defaulting to false. Two flags alter scheduling:

  - prefer_cost_optimization: cost weight becomes min(cost×1.2, 0.60) and the
    remaining weights are renormalized proportionally
  - credential_validation_enabled: the saga's schedule step requires stored
    credentials for the selected provider

# Analytics

Analytics accumulates counters under a mutex: totals, gate rejections,
per-provider / per-region / per-tier distribution, per-experiment group
counts, and a running average score per provider. Snapshot() returns a
consistent copy with rates rounded to four decimal places and percentages to
two. A gate rejection increments total_requests as well, so the rejection
rate is rejections/requests.
*/
package experiment
