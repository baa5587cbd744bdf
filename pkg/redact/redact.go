package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder substitui o conteúdo de campos sensíveis no XML persistido
const Placeholder = "[REDACTED]"

// sensitiveTags são as tags cujo texto é removido antes de persistir XML no
// log de eventos. A versão original permanece em memória apenas para a chamada.
var sensitiveTags = []string{
	"CNPJ", "CPF", "IE", "Cnpj", "Cpf",
	"InscricaoMunicipal", "InscricaoEstadual",
	"Senha", "senha", "password", "Password",
}

var tagPatterns = buildPatterns()

func buildPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(sensitiveTags))
	for _, tag := range sensitiveTags {
		// Tags com ou sem prefixo de namespace
		expr := fmt.Sprintf(`(<(?:[\w-]+:)?%s(?:\s[^>]*)?>)[^<]*(</(?:[\w-]+:)?%s>)`, tag, tag)
		patterns = append(patterns, regexp.MustCompile(expr))
	}
	return patterns
}

// XML remove o texto de campos sensíveis (CPF/CNPJ/IE/senhas) de um XML
// antes da gravação em trilha de auditoria
func XML(xml string) string {
	if strings.TrimSpace(xml) == "" {
		return xml
	}

	redacted := xml
	for _, pattern := range tagPatterns {
		redacted = pattern.ReplaceAllString(redacted, "${1}"+Placeholder+"${2}")
	}
	return redacted
}
