package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
)

// CollectionPrefixEnv namespaces the jobs and results collections so that
// several deployments can share one database.
const CollectionPrefixEnv = "FIRESTORE_COLLECTION_PREFIX"

// NewFirestoreClient creates a Firestore client for projectID. Both the
// store and the cloud functions go through here.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// CollectionPrefix reads CollectionPrefixEnv. An unset variable means no
// prefix.
func CollectionPrefix() (string, error) {
	prefix := strings.TrimSpace(GetEnv(CollectionPrefixEnv, ""))
	if err := validateCollectionPrefix(prefix); err != nil {
		return "", fmt.Errorf("%s: %w", CollectionPrefixEnv, err)
	}
	return prefix, nil
}

// Collection IDs may not contain a slash, be "." or "..", or look like
// __reserved__.
func validateCollectionPrefix(prefix string) error {
	switch {
	case prefix == "":
		return nil
	case strings.Contains(prefix, "/"):
		return fmt.Errorf("prefix %q must not contain '/'", prefix)
	case prefix == "." || prefix == "..":
		return fmt.Errorf("prefix %q is not a valid collection ID", prefix)
	case strings.HasPrefix(prefix, "__"):
		return fmt.Errorf("prefix %q must not start with '__'", prefix)
	}
	return nil
}

// CollectionName returns base, or "<prefix>_<base>" when prefix is set.
func CollectionName(prefix, base string) string {
	if prefix == "" {
		return base
	}
	return prefix + "_" + base
}
