package common

// AccessTokenHeaderName is the gRPC metadata key carrying the access token
// on outbound requests.
const AccessTokenHeaderName = "access_token"

// DefaultCollection is the collection every task document lives in.
const DefaultCollection = "tasks"
