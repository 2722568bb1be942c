// Package domain contains core domain types for the RevisaHub tutor.
package domain

import (
	"sort"
	"time"
)

// Preferences holds the categorical learning preferences collected at onboarding.
// Values are free strings; the prompt compiler maps unknown ones to defaults.
type Preferences struct {
	CanalSensorial        string `json:"canal_sensorial"`
	FormatoExplicacao     string `json:"formato_explicacao"`
	Abordagem             string `json:"abordagem"`
	InteracaoSocial       string `json:"interacao_social"`
	EstruturaEstudo       string `json:"estrutura_estudo"`
	DuracaoSessao         string `json:"duracao_sessao"`
	AmbienteEstudo        string `json:"ambiente_estudo"`
	MotivadorPrincipal    string `json:"motivador_principal"`
	EstrategiaDificuldade string `json:"estrategia_dificuldade"`
	PlanejamentoEstudos   string `json:"planejamento_estudos"`
	InteresseCultural     string `json:"interesse_cultural"`
}

// StreakState is the continuity part of a profile. Only the streak tracker writes it.
type StreakState struct {
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	LastActivityDate *string `json:"last_activity_date"`
	TotalStudyDays   int     `json:"total_study_days"`
}

// Profile is the stored personalization record for one student.
type Profile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Preferences
	StreakState
	CreatedAt time.Time `json:"created_at"`
}

// ProfileCreate is the onboarding payload.
type ProfileCreate struct {
	Name string `json:"name"`
	Preferences
}

// NewProfile builds a profile with zeroed streak counters.
func NewProfile(id string, in ProfileCreate, now time.Time) *Profile {
	return &Profile{
		ID:          id,
		Name:        in.Name,
		Preferences: in.Preferences,
		CreatedAt:   now.UTC(),
	}
}

// ProfileUpdate is a partial update of the mutable profile fields.
// Nil fields are left untouched. Streak counters are deliberately absent.
type ProfileUpdate struct {
	Name                  *string `json:"name,omitempty"`
	CanalSensorial        *string `json:"canal_sensorial,omitempty"`
	FormatoExplicacao     *string `json:"formato_explicacao,omitempty"`
	Abordagem             *string `json:"abordagem,omitempty"`
	InteracaoSocial       *string `json:"interacao_social,omitempty"`
	EstruturaEstudo       *string `json:"estrutura_estudo,omitempty"`
	DuracaoSessao         *string `json:"duracao_sessao,omitempty"`
	AmbienteEstudo        *string `json:"ambiente_estudo,omitempty"`
	MotivadorPrincipal    *string `json:"motivador_principal,omitempty"`
	EstrategiaDificuldade *string `json:"estrategia_dificuldade,omitempty"`
	PlanejamentoEstudos   *string `json:"planejamento_estudos,omitempty"`
	InteresseCultural     *string `json:"interesse_cultural,omitempty"`
}

// Fields returns the set fields keyed by their stored field name.
func (u ProfileUpdate) Fields() map[string]string {
	out := make(map[string]string)
	set := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	set("name", u.Name)
	set("canal_sensorial", u.CanalSensorial)
	set("formato_explicacao", u.FormatoExplicacao)
	set("abordagem", u.Abordagem)
	set("interacao_social", u.InteracaoSocial)
	set("estrutura_estudo", u.EstruturaEstudo)
	set("duracao_sessao", u.DuracaoSessao)
	set("ambiente_estudo", u.AmbienteEstudo)
	set("motivador_principal", u.MotivadorPrincipal)
	set("estrategia_dificuldade", u.EstrategiaDificuldade)
	set("planejamento_estudos", u.PlanejamentoEstudos)
	set("interesse_cultural", u.InteresseCultural)
	return out
}

// SortedFieldNames returns the keys of fields in lexicographic order.
func SortedFieldNames(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply writes the set fields of u onto p.
func (u ProfileUpdate) Apply(p *Profile) {
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&p.Name, u.Name)
	apply(&p.CanalSensorial, u.CanalSensorial)
	apply(&p.FormatoExplicacao, u.FormatoExplicacao)
	apply(&p.Abordagem, u.Abordagem)
	apply(&p.InteracaoSocial, u.InteracaoSocial)
	apply(&p.EstruturaEstudo, u.EstruturaEstudo)
	apply(&p.DuracaoSessao, u.DuracaoSessao)
	apply(&p.AmbienteEstudo, u.AmbienteEstudo)
	apply(&p.MotivadorPrincipal, u.MotivadorPrincipal)
	apply(&p.EstrategiaDificuldade, u.EstrategiaDificuldade)
	apply(&p.PlanejamentoEstudos, u.PlanejamentoEstudos)
	apply(&p.InteresseCultural, u.InteresseCultural)
}
