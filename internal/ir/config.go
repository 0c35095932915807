package ir

// Setting keys read from the host settings store.
const (
	SettingContextKeys = "babel.contextKeys"
	SettingSyncSlots   = "babel.syncTvs"
	SettingLinkSlot    = "babel.babelTvName"
)

// Default configuration values.
const (
	DefaultLinkSlot           = "babelLanguageLinks"
	DefaultTranslationPending = "(translation pending)"
	DefaultManagerCachePath   = "cache/mgr/smarty/"
)

// Config is the compiled engine configuration.
type Config struct {
	// ContextKeys is the flat context group setting, e.g. "web,de;intranet,intranet-de".
	ContextKeys string `json:"context_keys"`

	// LinkSlot is the slot holding each replica's serialized link set.
	LinkSlot string `json:"link_slot"`

	// SyncSlots lists the slots whose values are kept equal across a group.
	SyncSlots []string `json:"sync_slots"`

	// TranslationPending is appended to the title of duplicated replicas.
	TranslationPending string `json:"translation_pending"`

	// ManagerCachePath is invalidated when the context group setting changes.
	ManagerCachePath string `json:"manager_cache_path"`

	Policy FieldPolicy `json:"policy"`
	Schema Schema      `json:"schema"`
}

// DefaultConfig returns a configuration with every default filled in.
func DefaultConfig() Config {
	return Config{
		LinkSlot:           DefaultLinkSlot,
		TranslationPending: DefaultTranslationPending,
		ManagerCachePath:   DefaultManagerCachePath,
		Policy:             DefaultFieldPolicy(),
		Schema:             DefaultSchema(),
	}
}
