/*
Package authsdk is the client side of the identity platform: what an app
(rather than its backend) talks to when it signs a user in.

Backends mint custom tokens with the admin SDK in package auth. The app
swaps one for an ID token here and sends that ID token back to the
backend, which verifies it.

	client := authsdk.NewSDKClient("http://localhost:9099")

	res, err := client.SignInWithCustomToken(ctx, customToken)
	if err != nil {
		if authsdk.IsCode(err, authsdk.CodeUserDisabled) {
			// The account has been switched off
		}
		return err
	}
	fmt.Println("signed in as", res.LocalID, "new:", res.IsNewUser)

The client also reads the published signing keys and the health endpoints,
which is mostly useful against the emulator in tests.

# Errors

Failed calls return an *APIError carrying the platform's error code, for
example INVALID_CUSTOM_TOKEN or USER_DISABLED. IsCode matches on it.

SDKClient is safe for concurrent use.
*/
package authsdk
