// Package dtclient is the entry point for building Disruptive Technologies
// API clients.
//
// A client is built from a *dt.Config snapshot plus a credential:
//
//	client, err := dtclient.NewWithServiceAccount(ctx, nil, keyID, secret, email)
//	if err != nil {
//		return err
//	}
//
//	devices, err := client.Devices().List(ctx, projectID, nil)
//
// NewFromEnv reads the service account and tuning settings from DT_*
// environment variables, an optional .env file and an optional YAML config
// file. See LoadConfig for the keys.
package dtclient
