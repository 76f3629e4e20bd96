/*
Package traffic routes client connections between the two sides of a
replication pair.

A Provider manages DNS/GSLB entries per cell host: EnsureRecord declares the
primary and secondary target sets, Switch flips which side receives writes,
and Status reports the current routing state. The failover orchestrator
calls Switch during its UPDATE_DNS phase.

The oci-dns provider is the default and keeps authoritative state in
process. route53 and cloudflare are acknowledged stubs pending real
steering-API integrations. The Factory resolves the configured provider
from the traffic.default_provider config key and caches instances so
routing tables survive across lookups; every instance is wrapped in a
30-second status cache because steering read APIs are rate-limited.
*/
package traffic
