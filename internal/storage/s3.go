package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const maxObjectSize = 50 * 1024 * 1024

// S3Config descreve parâmetros necessários para assinar requisições compatíveis com S3.
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	HTTPClient   *http.Client
}

// S3Uploader envia mídias para um bucket S3/R2 com assinatura SigV4.
type S3Uploader struct {
	cfg    S3Config
	client *resty.Client
	now    func() time.Time
}

// NewS3Uploader cria um uploader pronto para enviar arquivos a um endpoint S3/R2.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var client *resty.Client
	if cfg.HTTPClient != nil {
		client = resty.NewWithClient(cfg.HTTPClient)
	} else {
		client = resty.New().SetTimeout(60 * time.Second)
	}

	return &S3Uploader{cfg: cfg, client: client, now: time.Now}, nil
}

// Upload envia o objeto e devolve a URL pública (ou a URL do bucket quando não há domínio público).
func (u *S3Uploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key := strings.TrimLeft(strings.TrimSpace(input.Key), "/")
	if key == "" {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}
	if len(input.Body) > maxObjectSize {
		return nil, fmt.Errorf("storage: objeto excede %d bytes", maxObjectSize)
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	escapedKey := (&url.URL{Path: key}).EscapedPath()
	target, err := url.Parse(fmt.Sprintf("%s/%s/%s", strings.TrimRight(u.cfg.Endpoint, "/"), u.cfg.Bucket, escapedKey))
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(input.Body)
	headers := map[string]string{
		"content-type":         contentType,
		"x-amz-content-sha256": hex.EncodeToString(sum[:]),
	}
	signed := u.sign(http.MethodPut, target, headers, u.now().UTC())

	req := u.client.R().
		SetContext(ctx).
		SetHeaders(signed).
		SetBody(input.Body)
	if cc := strings.TrimSpace(input.CacheControl); cc != "" {
		req.SetHeader("Cache-Control", cc)
	}

	resp, err := req.Put(target.String())
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		body := strings.TrimSpace(string(resp.Body()))
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, fmt.Errorf("storage: upload falhou (%d): %s", resp.StatusCode(), body)
	}

	publicURL := target.String()
	if domain := strings.TrimSpace(u.cfg.PublicDomain); domain != "" {
		publicURL = strings.TrimRight(domain, "/") + "/" + escapedKey
	}

	return &UploadResult{
		Key:  key,
		URL:  publicURL,
		ETag: strings.Trim(resp.Header().Get("ETag"), `"`),
	}, nil
}

func (cfg S3Config) validate() error {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return errors.New("storage: endpoint do S3 ausente")
	case strings.TrimSpace(cfg.Region) == "":
		return errors.New("storage: região do S3 ausente")
	case strings.TrimSpace(cfg.Bucket) == "":
		return errors.New("storage: bucket do S3 ausente")
	case strings.TrimSpace(cfg.AccessKey) == "" || strings.TrimSpace(cfg.SecretKey) == "":
		return errors.New("storage: credenciais do S3 ausentes")
	case !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://"):
		return errors.New("storage: endpoint deve incluir protocolo http/https")
	}
	return nil
}

// sign devolve os cabeçalhos a enviar, incluindo x-amz-date e Authorization.
// Apenas host e os cabeçalhos recebidos entram na assinatura.
func (u *S3Uploader) sign(method string, target *url.URL, headers map[string]string, now time.Time) map[string]string {
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	all := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		all[strings.ToLower(k)] = strings.TrimSpace(v)
	}
	all["host"] = target.Host
	all["x-amz-date"] = amzDate

	names := make([]string, 0, len(all))
	for k := range all {
		names = append(names, k)
	}
	sort.Strings(names)

	var canonHeaders strings.Builder
	for _, name := range names {
		canonHeaders.WriteString(name + ":" + all[name] + "\n")
	}
	signedHeaders := strings.Join(names, ";")

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	canonicalRequest := strings.Join([]string{
		method,
		path,
		canonicalQuery(target.Query()),
		canonHeaders.String(),
		signedHeaders,
		all["x-amz-content-sha256"],
	}, "\n")
	hashed := sha256.Sum256([]byte(canonicalRequest))

	scope := dateStamp + "/" + u.cfg.Region + "/s3/aws4_request"
	stringToSign := strings.Join([]string{"AWS4-HMAC-SHA256", amzDate, scope, hex.EncodeToString(hashed[:])}, "\n")

	key := hmacSHA256([]byte("AWS4"+u.cfg.SecretKey), []byte(dateStamp))
	key = hmacSHA256(key, []byte(u.cfg.Region))
	key = hmacSHA256(key, []byte("s3"))
	key = hmacSHA256(key, []byte("aws4_request"))
	signature := hex.EncodeToString(hmacSHA256(key, []byte(stringToSign)))

	out := make(map[string]string, len(all))
	for k, v := range all {
		if k == "host" {
			continue
		}
		out[k] = v
	}
	out["Authorization"] = fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		u.cfg.AccessKey, scope, signedHeaders, signature)
	return out
}

func canonicalQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := append([]string(nil), values[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
