// Package presigned provides HMAC-signed, time-limited download URLs for
// object stores that cannot presign natively (filesystem, memory).
//
// Server-side: sign a URL
//
//	signer := presigned.New(
//	    presigned.WithSecretKey("your-secret-key"),
//	    presigned.WithBaseURL("https://statements.example.com"),
//	)
//	url, err := signer.SignGet(objectKey, 5*time.Minute, "application/pdf")
//
// Server-side: serve signed URLs
//
//	r.Handle(signer.PathPrefix()+"*", presigned.NewHandler(signer, store))
//
// The signature covers the method, object key, response content type and
// expiry, so none of them can be altered by the holder of the URL.
package presigned
