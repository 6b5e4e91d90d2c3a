package model

// Controlled vocabularies. Ontology dimensions and tradition/region vocab are
// fixed at deploy time; terms proposed outside them go to the pending-term
// queue rather than being persisted as tags.

// OntologyDimensions maps dimension name to its controlled term set.
var OntologyDimensions = map[string][]string{
	"ritual_intent": {
		"healing", "protection", "purification", "fertility_abundance",
		"initiation_transition", "divination", "spirit_contact",
		"curse_binding", "atonement_repair", "sovereignty_legitimation",
	},
	"ritual_actors": {
		"specialist_priest", "household_practitioner", "initiate_group",
		"ruler_state_actor", "community_collective", "spirit_nonhuman_agent",
	},
	"ritual_actions": {
		"invocation", "chant_recitation", "anointing", "offering_deposit",
		"fire_operation", "water_operation", "gesture_sequence",
		"circumambulation", "inscription_writing", "burial_interment",
	},
	"materials_tools": {
		"plant_materia", "mineral_materia", "animal_materia",
		"vessel_container", "blade_tool", "cord_binding_material",
		"lamp_flame", "tablet_scroll", "powder_incense", "liquid_elixir",
	},
	"time_timing": {
		"seasonal_calendar", "lunar_phase", "solar_marker", "night_operation",
		"dawn_operation", "hourly_auspicious_window", "life_cycle_event",
	},
	"location_setting": {
		"domestic_space", "temple_sanctuary", "open_landscape", "water_edge",
		"burial_site", "threshold_crossing", "restricted_chamber",
	},
	"invocation_structure": {
		"deity_address", "ancestor_address", "angelic_hierarchy",
		"spirit_command", "formulaic_epithet_sequence", "vow_oath_clause",
	},
	"exchange_offering": {
		"food_offering", "liquid_libation", "burnt_offering", "votive_object",
		"spoken_vow_exchange", "service_obligation",
	},
	"protection_boundary": {
		"circle_boundary", "threshold_marking", "name_seal",
		"apotropaic_symbol", "protective_text_inscription",
		"guardianship_invocation",
	},
	"divination_modality": {
		"lot_casting", "dream_incubation", "omen_reading",
		"astrological_reading", "scrying_surface", "mediumship",
	},
	"outcome_claim": {
		"material_change", "status_change", "knowledge_revelation",
		"protection_confirmed", "curse_effect_claim", "healing_claim",
		"uncertain_or_symbolic",
	},
}

// TraditionVocabulary is the controlled tradition tag set.
var TraditionVocabulary = map[string]bool{
	"celtic":                   true,
	"greek_mystery":            true,
	"zoroastrian":              true,
	"grimoire_tradition":       true,
	"mesopotamian_ritual":      true,
	"vedic_ritual":             true,
	"daoist_ritual":            true,
	"yoruba_orisha":            true,
	"andean_ritual":            true,
	"mesoamerican_ritual":      true,
	"early_jewish_apocalyptic": true,
	"late_antique_esoteric":    true,
}

// RegionVocabulary is the controlled origin-region set.
var RegionVocabulary = map[string]bool{
	"africa_nile":          true,
	"west_central_asia":    true,
	"south_asia":           true,
	"east_asia":            true,
	"europe_mediterranean": true,
	"americas_indigenous":  true,
}

// FlagTypes is the fixed flag taxonomy.
var FlagTypes = map[string]bool{
	"uncertain_translation": true,
	"hostile_source_frame":  true,
	"provenance_gap":        true,
	"date_uncertainty":      true,
	"conflicting_witnesses": true,
}

// RelationTypes is the fixed commonality relation set.
var RelationTypes = map[string]bool{
	"isVersionOf":       true,
	"isRelatedTo":       true,
	"sharesPatternWith": true,
	"isDerivativeOf":    true,
}

// CanonicalLanguage is the normalization target for all translations.
const CanonicalLanguage = "eng"

// ValidOntologyTerm reports whether term belongs to dimension's controlled set.
func ValidOntologyTerm(dimension, term string) bool {
	terms, ok := OntologyDimensions[dimension]
	if !ok {
		return false
	}
	for _, t := range terms {
		if t == term {
			return true
		}
	}
	return false
}
