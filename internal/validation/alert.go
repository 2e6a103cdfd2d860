package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

const MaxMediaSize int64 = 50 * 1024 * 1024

// MediaType classifica a mídia anexada a um alerta.
type MediaType string

const (
	MediaImage   MediaType = "image"
	MediaVideo   MediaType = "video"
	MediaUnknown MediaType = "unknown"
)

var (
	imageExtensions = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}}
	videoExtensions = map[string]struct{}{".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {}, ".webm": {}}

	mediaExtensionsLabel = ".jpg, .jpeg, .png, .gif, .webp, .mp4, .avi, .mov, .wmv, .flv, .webm"
)

// ClassifyMedia devolve o tipo da mídia pela extensão do arquivo.
func ClassifyMedia(filename string) MediaType {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageExtensions[ext]; ok {
		return MediaImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return MediaVideo
	}
	return MediaUnknown
}

// Media valida tamanho e extensão de um arquivo de mídia.
func Media(filename string, size int64) (MediaType, error) {
	if size > MaxMediaSize {
		return MediaUnknown, newError("media", fmt.Sprintf(
			"Arquivo muito grande. Tamanho máximo: 50MB. Tamanho atual: %.1fMB", float64(size)/(1024*1024)))
	}

	kind := ClassifyMedia(filename)
	if kind == MediaUnknown {
		return kind, newError("media", fmt.Sprintf(
			"Tipo de arquivo não suportado: %s. Tipos válidos: %s", strings.ToLower(filepath.Ext(filename)), mediaExtensionsLabel))
	}
	return kind, nil
}

// FormatFileSize formata bytes para exibição ("1.5 MB").
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}

// Coordinates confere cada valor informado; latitude ou longitude podem vir sozinhas.
func Coordinates(lat, lng *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return newError("latitude", "Latitude deve estar entre -90 e 90 graus")
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		return newError("longitude", "Longitude deve estar entre -180 e 180 graus")
	}
	return nil
}

// Priority aceita apenas 1 (baixa) a 4 (crítica).
func Priority(p int) error {
	switch p {
	case 1, 2, 3, 4:
		return nil
	}
	return newError("priority", "Prioridade deve ser uma das opções: [1, 2, 3, 4]")
}

var locationPattern = regexp.MustCompile(`^[a-zA-Z\x{C0}-\x{FF}0-9\s\-,.]+$`)

var locationKeywords = []string{
	"florianópolis", "florianopolis", "fpolis", "ilha da magia",
	"centro", "trindade", "lagoa", "canasvieiras", "ingleses",
	"jurerê", "barra da lagoa", "campeche", "pantanal", "córrego grande",
	"santa mônica", "carvoeira", "serrinha", "joão paulo", "monte verde",
	"saco grande", "itacorubi", "agronômica", "capoeiras", "coqueiros",
	"estreito", "balneário", "coloninha", "abraão", "bom abrigo",
	"canto", "santinho", "cachoeira do bom jesus", "ponta das canas",
	"lagoinha", "daniela", "praia brava", "galheta", "mole", "joaquina",
	"armação", "matadeiro", "lagoinha do leste", "pântano do sul",
	"costa de dentro", "ribeirão da ilha", "tapera", "caieira da barra do sul",
	"alto ribeirão", "sede fragas", "costeira do pirajubaé", "saco dos limões",
	"josé mendes", "prainha", "bom retiro", "jardim atlântico",
	"vargem do bom jesus", "vargem grande", "vargem pequena",
	"santo antônio de lisboa", "ratones", "cacupé", "sambaqui",
	"barra do sambaqui", "monte cristo", "sc", "santa catarina",
}

// Location confere que o texto livre de localização cita Florianópolis ou um bairro.
// Vazio é aceito (campo opcional).
func Location(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil
	}
	if len([]rune(trimmed)) > 255 {
		return "", newError("location_text", "Localização não pode exceder 255 caracteres")
	}
	if !locationPattern.MatchString(trimmed) {
		return "", newError("location_text", "Localização deve conter apenas letras, números, espaços e pontuação básica")
	}

	lower := strings.ToLower(trimmed)
	for _, keyword := range locationKeywords {
		if strings.Contains(lower, keyword) {
			return trimmed, nil
		}
	}
	return "", newError("location_text", "Localização deve estar em Florianópolis. Inclua o nome do bairro ou região na descrição.")
}
