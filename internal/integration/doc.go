// Package integration runs the publish and check workflows end to end
// against local HTTP stand-ins for the bucket, the CDN and the Cloudflare API.
package integration
