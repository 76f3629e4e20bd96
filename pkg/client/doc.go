/*
Package client is a typed Go client for the Strata control plane API.

A Client wraps one control node's base URL and exposes the HTTP surface as
methods returning the same structs the server encodes, so a caller works
with orchestration.CreateResult or types.ReplicationPair rather than raw
JSON. The manager uses it node-to-node for cluster joins; CLI subcommands
and tests use it the same way an operator's tooling would.

# Usage

	c := client.New("http://10.0.0.5:8080",
		client.WithToken(adminToken),
		client.WithTimeout(time.Minute))

	result, err := c.CreateDatabase(ctx, client.ServiceRequest{
		Name:      "orders-db",
		Namespace: "team-a",
		Tier:      "critical",
		Params:    map[string]interface{}{"size": "medium"},
	})

A bare host:port base URL is promoted to http://, matching how Raft peers
are listed in cluster config.

# Errors

Non-2xx responses decode into *APIError carrying the status code, the
server's message, and whichever taxonomy fields the envelope included:
validation details, the scheduling refusal reason, or the failed saga's id
and step.

	if _, err := c.CreateService(ctx, "mysql", req); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Reason != "" {
			// placement refused: no provider passed the gates
		}
	}

Two operations report domain failures as results instead of errors, in the
same shape the server uses: FailoverPair returns an aborted run with its
failing step, and ValidateCredentials returns a failed validation with its
violations. Both arrive with HTTP 422 and decode normally.

# Admin surface

Config, provider definitions, DR policies, saga and placement history, the
audit log, credentials, and cluster membership changes sit behind the
node's admin token. Construct the client with WithToken; the token rides as
an Authorization bearer header on every request and non-admin routes ignore
it.
*/
package client
