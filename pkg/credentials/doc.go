// Package credentials manages provider credentials: sealed storage,
// structural validation, and display masking.
//
// Payloads are encrypted with the security box before they reach the store
// and never leave the package unmasked; only the scheduler's existence
// check and the validator open the sealed blob. Validation is structural
// (required fields, AWS key format) and records its outcome on the row;
// calling real cloud APIs is out of scope. Saving new material resets the
// validated flag.
//
// Built-in schemas cover aws (access_key, irsa), gcp (service_account,
// workload_identity) and oci (api_key, instance_principal). Unknown
// providers store and validate without checks.
package credentials
