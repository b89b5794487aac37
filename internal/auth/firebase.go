package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Google 为 Firebase 签发 ID Token 所用证书的公开地址。
const firebaseCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

var ErrFirebaseTokenInvalid = errors.New("firebase id token invalid")

// FirebaseClaims 是校验通过后的身份信息子集。
type FirebaseClaims struct {
	UID            string
	Email          string
	Name           string
	Picture        string
	PhoneNumber    string
	SignInProvider string
}

// FirebaseVerifier 在服务端校验 Firebase ID Token（Google/Facebook/手机号登录）。
// 证书按 Cache-Control 周期缓存，过期后惰性刷新。
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	refreshAt time.Time
}

// NewFirebaseVerifier 构造校验器。projectID 必须与签发方一致。
func NewFirebaseVerifier(projectID string) *FirebaseVerifier {
	return &FirebaseVerifier{
		projectID: projectID,
		certsURL:  firebaseCertsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		keys:      map[string]*rsa.PublicKey{},
	}
}

// NewFirebaseVerifierWithCertsURL 供测试注入伪造的证书端点。
func NewFirebaseVerifierWithCertsURL(projectID, certsURL string) *FirebaseVerifier {
	v := NewFirebaseVerifier(projectID)
	v.certsURL = certsURL
	return v
}

type firebaseTokenClaims struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture"`
	PhoneNumber string `json:"phone_number"`
	Firebase    struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
	jwt.RegisteredClaims
}

// VerifyIDToken 校验 ID Token 的签名、签发者与受众，返回身份信息。
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*FirebaseClaims, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrFirebaseTokenInvalid
	}

	claims := &firebaseTokenClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header missing kid")
		}
		return v.publicKey(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFirebaseTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrFirebaseTokenInvalid
	}

	expectedIssuer := "https://securetoken.google.com/" + v.projectID
	if claims.Issuer != expectedIssuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrFirebaseTokenInvalid, claims.Issuer)
	}
	if len(claims.Audience) == 0 || claims.Audience[0] != v.projectID {
		return nil, fmt.Errorf("%w: unexpected audience", ErrFirebaseTokenInvalid)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrFirebaseTokenInvalid)
	}

	return &FirebaseClaims{
		UID:            claims.Subject,
		Email:          claims.Email,
		Name:           claims.Name,
		Picture:        claims.Picture,
		PhoneNumber:    claims.PhoneNumber,
		SignInProvider: claims.Firebase.SignInProvider,
	}, nil
}

func (v *FirebaseVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Now().Before(v.refreshAt)
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("no certificate for kid %q", kid)
	}
	return key, nil
}

func (v *FirebaseVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("build certs request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch firebase certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch firebase certs: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read firebase certs: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("decode firebase certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, certPEM := range raw {
		block, _ := pem.Decode([]byte(certPEM))
		if block == nil {
			return fmt.Errorf("decode certificate pem for kid %q", kid)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse certificate for kid %q: %w", kid, err)
		}
		rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("certificate for kid %q is not rsa", kid)
		}
		keys[kid] = rsaKey
	}

	v.mu.Lock()
	v.keys = keys
	v.refreshAt = time.Now().Add(certsMaxAge(resp.Header.Get("Cache-Control")))
	v.mu.Unlock()
	return nil
}

// certsMaxAge 从 Cache-Control 提取 max-age，缺省 1 小时。
func certsMaxAge(header string) time.Duration {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "max-age="); ok {
			if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return time.Hour
}
