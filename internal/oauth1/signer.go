package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SignatureMethod is the only signature method the platform supports.
const SignatureMethod = "HMAC-SHA1"

// nonceBytes is the entropy of a generated nonce. 16 random bytes rendered
// as 32 lowercase hex characters.
const nonceBytes = 16

// ErrMissingConsumer is returned when signing is attempted without consumer
// credentials.
var ErrMissingConsumer = errors.New("oauth1: missing consumer credentials")

// Credentials is the material a signature is computed over: the consumer
// key/secret identifying the application, and optionally a token/secret pair
// (either a request token during the authorization flow, or the long-lived
// user access token).
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Placement determines where the oauth_* protocol parameters are carried on
// the wire. It is resolved once per call site, not inferred from the HTTP
// method at request time.
type Placement int

const (
	// PlacementQuery merges the oauth_* parameters into the request's own
	// parameter set. The platform's REST endpoint expects every parameter,
	// including the protocol ones, in a single query string or form body.
	PlacementQuery Placement = iota

	// PlacementHeader carries the oauth_* parameters in an
	// "Authorization: OAuth ..." header, leaving the request parameters
	// untouched.
	PlacementHeader
)

// Signed is the result of signing one request.
type Signed struct {
	// Placement echoes the requested parameter placement.
	Placement Placement

	// Header is the full Authorization header value. Set only for
	// PlacementHeader.
	Header string

	// Params is the caller's parameter set merged with all oauth_*
	// parameters including the signature. Set only for PlacementQuery.
	Params map[string]string

	// OAuthParams holds just the oauth_* protocol parameters (including
	// oauth_signature) regardless of placement.
	OAuthParams map[string]string
}

// Signer computes OAuth 1.0a HMAC-SHA1 signatures per RFC 5849.
//
// Nonce and Now exist for tests; production signers use crypto/rand and the
// wall clock, so two signatures over identical inputs never match.
type Signer struct {
	Nonce func() (string, error)
	Now   func() time.Time
}

// NewSigner returns a Signer using crypto/rand nonces and the system clock.
func NewSigner() *Signer {
	return &Signer{
		Nonce: randomNonce,
		Now:   time.Now,
	}
}

// Sign signs one request and returns the auth material in the requested
// placement. rawURL must not carry a query string; any query or fragment is
// stripped during normalization. params are the request's own parameters
// (query or body), all of which participate in the signature.
func (s *Signer) Sign(method, rawURL string, creds Credentials, params map[string]string, placement Placement) (*Signed, error) {
	oauthParams, err := s.protocolParams(creds)
	if err != nil {
		return nil, err
	}

	normalizedURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	base := baseString(method, normalizedURL, oauthParams, params)
	oauthParams["oauth_signature"] = signHMACSHA1(signingKey(creds), base)

	signed := &Signed{
		Placement:   placement,
		OAuthParams: oauthParams,
	}

	switch placement {
	case PlacementHeader:
		signed.Header = headerValue(oauthParams)
	default:
		merged := make(map[string]string, len(params)+len(oauthParams))
		for k, v := range params {
			merged[k] = v
		}
		for k, v := range oauthParams {
			merged[k] = v
		}
		signed.Params = merged
	}

	return signed, nil
}

// protocolParams assembles the oauth_* parameter set, minus the signature.
func (s *Signer) protocolParams(creds Credentials) (map[string]string, error) {
	if creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
		return nil, ErrMissingConsumer
	}

	nonce, err := s.Nonce()
	if err != nil {
		return nil, fmt.Errorf("oauth1: nonce generation failed: %w", err)
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.Now().Unix(), 10),
		"oauth_version":          "1.0",
	}
	if creds.Token != "" {
		oauthParams["oauth_token"] = creds.Token
	}
	return oauthParams, nil
}

type pair struct {
	k string
	v string
}

// baseString builds the RFC 5849 signature base string:
// METHOD&enc(url)&enc(sorted params).
func baseString(method, normalizedURL string, paramSets ...map[string]string) string {
	total := 0
	for _, set := range paramSets {
		total += len(set)
	}
	pairs := make([]pair, 0, total)
	for _, set := range paramSets {
		for k, v := range set {
			pairs = append(pairs, pair{k: PercentEncode(k), v: PercentEncode(v)})
		}
	}
	// Sort by encoded key, then encoded value for ties.
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k == pairs[j].k {
			return pairs[i].v < pairs[j].v
		}
		return pairs[i].k < pairs[j].k
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.k+"="+p.v)
	}
	paramString := strings.Join(parts, "&")

	return strings.ToUpper(method) + "&" + PercentEncode(normalizedURL) + "&" + PercentEncode(paramString)
}

// signingKey is enc(consumerSecret)&enc(tokenSecret), where the token secret
// may be empty (consumer-only signing still keeps the trailing ampersand).
func signingKey(creds Credentials) string {
	return PercentEncode(creds.ConsumerSecret) + "&" + PercentEncode(creds.TokenSecret)
}

// headerValue renders the oauth_* parameters as an Authorization header
// value, sorted by key, each value percent-encoded and quoted.
func headerValue(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, PercentEncode(oauthParams[k])))
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// normalizeURL lowercases scheme and host and strips query and fragment,
// per the RFC 5849 base string URI rules.
func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("oauth1: invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("oauth1: invalid URL %q", rawURL)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path, nil
}

func signHMACSHA1(key, msg string) string {
	h := hmac.New(sha1.New, []byte(key))
	_, _ = h.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func randomNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// PercentEncode encodes s per RFC 3986. The unreserved characters
// (ALPHA / DIGIT / "-" / "." / "_" / "~") pass through; everything else,
// including space, becomes an uppercase hex escape. Space is never "+".
func PercentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}
