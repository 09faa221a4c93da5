// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	apikeyspb "cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

const browserMapKeyDisplayName = "Sentinel Maps Browser Key"

// resolveBrowserMapKeyFromADC looks up the browser-restricted Maps API key
// by display name using Application Default Credentials, so operators never
// need to paste the key into an env var by hand in environments where ADC
// is already configured for the project.
func resolveBrowserMapKeyFromADC(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	if creds.ProjectID == "" {
		return "", fmt.Errorf("default credentials have no associated project")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	req := &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", creds.ProjectID),
	}

	it := client.ListKeys(ctx, req)

	for {
		key, err := it.Next()
		if err == iterator.Done {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing API keys: %w", err)
		}

		if key.GetDisplayName() == browserMapKeyDisplayName {
			ks, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.GetName()})
			if err != nil {
				return "", fmt.Errorf("retrieving key string for %q: %w", key.GetName(), err)
			}

			return ks.GetKeyString(), nil
		}
	}

	return "", fmt.Errorf("no API key named %q found in project %s", browserMapKeyDisplayName, creds.ProjectID)
}
