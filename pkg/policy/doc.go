/*
Package policy provides the tier table and candidate pool the scheduler
consults.

Tiers describe criticality classes: recovery objectives (RTO/RPO), hard
capability requirements, and the scoring weights that express what the tier
cares about. Candidates describe the placement targets: a provider, region
and runtime cluster, the capabilities the target supports, a sub-score per
dimension, and the network attachment the claim will carry.

# Built-in Defaults

Four tiers ship compiled in:

	tier               rto   rpo   weights (lat/dr/mat/cost)
	low                 30     5   .30/.30/.25/.15
	medium             120    15   .25/.25/.25/.25
	critical           480    60   .15/.15/.20/.50
	business_critical   15     1   .25/.40/.25/.10

and a seven-candidate pool across aws, gcp and oci. Production deployments
overlay either section from a YAML file:

	tiers:
	  - name: medium
	    rto_minutes: 120
	    rpo_minutes: 15
	    required_capabilities: [pitr, private_networking]
	    weights: {latency: 0.25, dr: 0.25, maturity: 0.25, cost: 0.25}
	candidates:
	  - provider: aws
	    region: us-east-1
	    runtime_cluster: aws-use1-prod-01
	    network: {vpc_id: vpc-aws-use1, subnet_group: db-private-use1}
	    capabilities: [pitr, multi_az, private_networking]
	    scores: {latency: 0.90, dr: 0.95, maturity: 0.95, cost: 0.50}

A present section replaces its default entirely; an absent one keeps the
defaults. Candidates omit healthy to mean true.

# Invariants

Load validation rejects (reporting every violation, not just the first):

  - tier weights that do not sum to 1.0 ± 0.01 or carry negative entries
  - candidate scores outside [0, 1]
  - candidates with an incomplete identity triple
  - an empty candidate pool

# Mutability

The model is immutable after load with one exception: the scheduler's health
registry flips Candidate.Healthy through the shared pointers. Candidate order
is fixed and meaningful - the scheduler breaks score ties by pool order.

# Usage

	model := policy.Default()
	// or
	model, err := policy.Load("/etc/strata/policy.yaml")

	tier, ok := model.Tier("medium")
	pool := model.Candidates()
*/
package policy
