package credentials

import (
	"fmt"
	"regexp"
)

var awsAccessKeyID = regexp.MustCompile(`^AKI[A-Z0-9]{13,}$`)

// CheckData runs a provider's structural checks against a payload. The
// returned strings are operator-facing violation messages; an empty slice
// means the payload is structurally valid. Providers outside the built-in
// set pass unchecked: custom providers carry their own conventions.
func CheckData(provider, credType string, data Data) []string {
	switch provider {
	case "aws":
		return checkAWS(credType, data)
	case "gcp":
		return checkGCP(credType, data)
	case "oci":
		return checkOCI(credType, data)
	}
	return nil
}

func checkAWS(credType string, data Data) []string {
	var errs []string
	switch credType {
	case TypeAccessKey:
		if data["aws_access_key_id"] == "" {
			errs = append(errs, "Missing 'aws_access_key_id'")
		} else if !awsAccessKeyID.MatchString(data["aws_access_key_id"]) {
			errs = append(errs, "'aws_access_key_id' does not match expected format (AKIA...)")
		}
		if data["aws_secret_access_key"] == "" {
			errs = append(errs, "Missing 'aws_secret_access_key'")
		}
	case TypeIRSA:
		// Role assumption happens in-cluster; nothing to check.
	default:
		errs = append(errs, fmt.Sprintf("Unsupported cred_type '%s' for AWS", credType))
	}
	return errs
}

func checkGCP(credType string, data Data) []string {
	var errs []string
	switch credType {
	case TypeServiceAccount:
		for _, field := range []string{"project_id", "client_email", "private_key"} {
			if data[field] == "" {
				errs = append(errs, fmt.Sprintf("Missing '%s'", field))
			}
		}
	case TypeWorkloadIdentity:
	default:
		errs = append(errs, fmt.Sprintf("Unsupported cred_type '%s' for GCP", credType))
	}
	return errs
}

func checkOCI(credType string, data Data) []string {
	var errs []string
	switch credType {
	case TypeAPIKey:
		for _, field := range []string{"tenancy_ocid", "user_ocid", "fingerprint", "private_key"} {
			if data[field] == "" {
				errs = append(errs, fmt.Sprintf("Missing '%s'", field))
			}
		}
	case TypeInstancePrincipal:
	default:
		errs = append(errs, fmt.Sprintf("Unsupported cred_type '%s' for OCI", credType))
	}
	return errs
}
