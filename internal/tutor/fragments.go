package tutor

import (
	"github.com/samber/lo"

	"github.com/ashureev/revisahub/internal/domain"
)

// Attribute keys, matching the stored profile field names.
const (
	AttrCanalSensorial        = "canal_sensorial"
	AttrFormatoExplicacao     = "formato_explicacao"
	AttrAbordagem             = "abordagem"
	AttrInteracaoSocial       = "interacao_social"
	AttrEstruturaEstudo       = "estrutura_estudo"
	AttrDuracaoSessao         = "duracao_sessao"
	AttrAmbienteEstudo        = "ambiente_estudo"
	AttrMotivadorPrincipal    = "motivador_principal"
	AttrEstrategiaDificuldade = "estrategia_dificuldade"
	AttrPlanejamentoEstudos   = "planejamento_estudos"
)

// attribute describes how one categorical preference renders in the prompt.
type attribute struct {
	key      string
	heading  string
	fallback string
}

// attributes lists the personalization block in render order.
var attributes = []attribute{
	{AttrCanalSensorial, "Canal Sensorial", "visual"},
	{AttrFormatoExplicacao, "Formato de Resposta", "analogias_historias"},
	{AttrAbordagem, "Abordagem", "pratica"},
	{AttrInteracaoSocial, "Interação", "tutor"},
	{AttrEstruturaEstudo, "Estrutura", "equilibrado"},
	{AttrDuracaoSessao, "Duração da Sessão", "15_30"},
	{AttrAmbienteEstudo, "Ambiente de Estudo", "depende"},
	{AttrMotivadorPrincipal, "Motivação", "desafios_metas"},
	{AttrEstrategiaDificuldade, "Quando Trava", "busca_exemplos"},
	{AttrPlanejamentoEstudos, "Planejamento", "as_vezes"},
}

// fragments maps attribute -> value -> instruction paragraph. New values or
// attributes only need an entry here and in attributes.
var fragments = map[string]map[string]string{
	AttrCanalSensorial: {
		"visual":          "Use descrições visuais, diagramas mentais, cores e formas. Sugira que o aluno visualize ou desenhe.",
		"auditivo":        "Explique como se conversasse, use ritmo e repetição. Sugira explicar em voz alta.",
		"leitura_escrita": "Use listas, definições claras e resumos estruturados. Sugira anotações.",
		"cinestesico":     "Use exemplos práticos, experimentos mentais e aplicações do dia a dia.",
	},
	AttrFormatoExplicacao: {
		"curta_objetiva":        "Respostas curtas com bullet points. Máximo 3-4 parágrafos.",
		"detalhada_aprofundada": "Explicações completas com contexto.",
		"exemplos_praticos":     "Muitos exemplos práticos do cotidiano.",
		"analogias_historias":   "Use analogias criativas e storytelling.",
	},
	AttrAbordagem: {
		"pratica": "Comece pela aplicação concreta e só depois formalize o conceito.",
		"teorica": "Apresente primeiro a definição e o princípio, depois mostre a aplicação.",
	},
	AttrInteracaoSocial: {
		"sozinho": "Dê caminhos para o aluno continuar estudando por conta própria.",
		"dupla":   "Sugira uma forma de revisar o tema explicando para um colega.",
		"grupo":   "Sugira uma atividade rápida para discutir o tema em grupo.",
		"tutor":   "Conduza passo a passo, como um tutor particular, checando o entendimento.",
	},
	AttrEstruturaEstudo: {
		"estruturado": "Organize a resposta em etapas numeradas e explícitas.",
		"livre":       "Mantenha a resposta fluida e aberta a explorações paralelas.",
		"equilibrado": "Use uma estrutura leve: tópicos principais, sem engessar a explicação.",
	},
	AttrDuracaoSessao: {
		"menos_15": "O aluno estuda em blocos curtos: vá direto ao ponto.",
		"15_30":    "Sessões médias: uma explicação completa e um exercício curto.",
		"30_60":    "Sessões longas: pode aprofundar e propor mais de um exercício.",
		"mais_60":  "Sessões extensas: aprofunde e sugira pausas entre os blocos.",
	},
	AttrAmbienteEstudo: {
		"silencio":  "Proponha momentos de reflexão concentrada.",
		"musica":    "Ritmo e repetição ajudam: use frases curtas e marcantes.",
		"movimento": "Proponha atividades que possam ser feitas em qualquer lugar.",
		"depende":   "Ofereça uma versão rápida e uma versão aprofundada quando fizer sentido.",
	},
	AttrMotivadorPrincipal: {
		"desafios_metas":    "Termine com um mini desafio ou meta clara.",
		"interesse_pessoal": "Mostre curiosidades que despertem a vontade de explorar mais.",
		"reconhecimento":    "Reconheça o progresso do aluno de forma explícita.",
		"utilidade_pratica": "Mostre onde o conteúdo é usado na vida real e no ENEM.",
	},
	AttrEstrategiaDificuldade: {
		"procura_sozinho": "Dê pistas antes da resposta completa, para o aluno tentar sozinho.",
		"pede_ajuda":      "Seja acolhedor e convide o aluno a perguntar de novo se travar.",
		"autoexplica":     "Peça que o aluno reexplique o conceito com as próprias palavras.",
		"busca_exemplos":  "Traga um exemplo resolvido logo após a analogia.",
	},
	AttrPlanejamentoEstudos: {
		"sempre":    "Sugira como encaixar o tema no plano de estudos dele.",
		"as_vezes":  "Sugira um próximo passo simples de revisão.",
		"raramente": "Sugira uma revisão rápida para amanhã.",
		"nunca":     "Sugira um único hábito pequeno de revisão.",
	},
}

// subjectHints is matched by substring against the subject label.
var subjectHints = []struct {
	match string
	hint  string
}{
	{"Matem", "Matemática: Foco em padrões numéricos e crescimento"},
	{"Física", "Física: Foco em movimento, energia e forças"},
	{"Química", "Química: Foco em reações e transformações"},
	{"Biologia", "Biologia: Foco em sistemas e processos"},
	{"Português", "Português: Foco em narrativa e estrutura"},
	{"História", "História: Foco em causas e consequências"},
	{"Geografia", "Geografia: Foco em espaço e relações"},
	{"Filosofia", "Filosofia: Foco em conceitos e argumentação"},
}

// preferenceValues exposes the categorical preferences keyed by attribute.
func preferenceValues(p domain.Preferences) map[string]string {
	return map[string]string{
		AttrCanalSensorial:        p.CanalSensorial,
		AttrFormatoExplicacao:     p.FormatoExplicacao,
		AttrAbordagem:             p.Abordagem,
		AttrInteracaoSocial:       p.InteracaoSocial,
		AttrEstruturaEstudo:       p.EstruturaEstudo,
		AttrDuracaoSessao:         p.DuracaoSessao,
		AttrAmbienteEstudo:        p.AmbienteEstudo,
		AttrMotivadorPrincipal:    p.MotivadorPrincipal,
		AttrEstrategiaDificuldade: p.EstrategiaDificuldade,
		AttrPlanejamentoEstudos:   p.PlanejamentoEstudos,
	}
}

// Resolve returns the known value for attr, or its default when value is
// outside the table.
func Resolve(attr, value string) string {
	if _, ok := fragments[attr][value]; ok {
		return value
	}
	for _, a := range attributes {
		if a.key == attr {
			return a.fallback
		}
	}
	return value
}

// Values lists the accepted values of attr in no particular order.
func Values(attr string) []string {
	return lo.Keys(fragments[attr])
}
