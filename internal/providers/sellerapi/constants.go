package sellerapi

import "time"

const (
	providerName       = "sellerapi"
	defaultBaseURL     = "http://localhost:8000/api/v1/seller"
	defaultPerPage     = 20
	defaultHTTPTimeout = 10 * time.Second
	maxBodyBytes       = 1 << 20
	errorBodyBytes     = 512
)
