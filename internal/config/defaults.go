package config

// Default validator block-lists. These identify encyclopedic, social,
// job-board, educational, and aggregator results that search sources
// routinely return alongside real businesses. Override via config when
// targeting other markets; the defaults cover Portuguese and English.

// DefaultInvalidKeywords rejects a record when any entry appears in its
// name or snippet (case-insensitive substring match).
var DefaultInvalidKeywords = []string{
	"wikipedia", "wiki", "youtube", "facebook", "instagram", "twitter",
	"linkedin", "glassdoor", "indeed", "monster",
	"vagas", "emprego", "carreira", "trabalho", "job board", "career", "salário", "salario", "salary",
	"melhores empresas", "top empresas", "ranking", "lista de",
	"como consultar", "passo a passo", "guia", "tutorial",
	"universidade", "faculdade", "curso de", "educação",
	"blog", "artigo", "notícia", "noticia", "reportagem",
	"resultado da busca", "resultados da busca",
}

// DefaultInvalidDomains rejects a record when its website's hostname
// matches an entry (exact or subdomain).
var DefaultInvalidDomains = []string{
	"wikipedia.org", "wikimedia.org",
	"youtube.com", "youtu.be",
	"facebook.com", "fb.com", "instagram.com", "twitter.com", "x.com", "linkedin.com",
	"google.com", "google.com.br", "maps.google.com", "bing.com",
	"glassdoor.com", "glassdoor.com.br", "indeed.com", "monster.com",
	"vagas.com", "vagas.com.br", "empregos.com.br",
	"reclameaqui.com.br", "yelp.com", "tripadvisor.com",
}

// DefaultListiclePatterns are regular expressions matching listicle,
// ranking, and aggregator page titles that masquerade as business names.
var DefaultListiclePatterns = []string{
	// "As 10 Melhores Clínicas", "Os 5 maiores escritórios", "Top 10 ..."
	`(?i)^(?:os|as|the)?\s*\d+\s+(?:melhores|maiores|best|top)\b`,
	`(?i)^(?:top|melhores)\s+\d+\b`,
	// "... – Glassdoor", "... | Yelp", "... - TripAdvisor"
	`\s[-–—|]\s*[\p{L}\d][\p{L}\d .]{1,30}$`,
	// how-to and question titles
	`(?i)^(?:como|quando|onde|o que|how to|what is)\b`,
	`\?`,
}
