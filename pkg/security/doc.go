/*
Package security provides the control plane's cryptographic helpers: an
AES-256-GCM secret box and a self-signed certificate authority for the API
listener.

# Secret Box

Box seals small secrets before they are persisted. Provider credential
blobs are sealed by pkg/credentials before they reach the store, and the
CA signing key is sealed before it reaches disk. Keys derive from the
bootstrap secret with SHA-256, so every control node configured with the
same secret opens the same blobs:

	box, err := security.NewBoxFromSecret(cfg.BootstrapSecret)
	sealed, err := box.Seal(plaintext)
	plaintext, err := box.Open(sealed)

Sealed blobs carry their nonce as a prefix; there is no external state.

# Certificate Authority

CertAuthority issues serving certificates for the optional HTTPS listener:

	RSA 4096 root, 10-year validity
	  └── RSA 2048 serving certificates, 90-day validity

CertNeedsRotation flags a serving certificate with less than 30 days
remaining. SaveToDir persists the root pair under the data directory with
the signing key sealed by the box; LoadCertAuthority restores it on
restart, so the trust bundle clients pin survives control node replacement.

TLS stays off unless the server configuration enables it; the API defaults
to plain HTTP behind the deployment's ingress.

# See Also

  - pkg/credentials - credential blob encryption and masking
  - pkg/api - HTTPS listener wiring
*/
package security
