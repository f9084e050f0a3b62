package db

// LocalPref is one key of the local persisted preference copy.
type LocalPref struct {
	Key       string `gorm:"column:key;primaryKey"`
	Value     string `gorm:"column:value;not null;default:''"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;default:0"`
}

func (LocalPref) TableName() string { return "local_prefs" }

// Document is a JSON body addressed by collection and id, e.g. settings/editor.
type Document struct {
	Collection string `gorm:"column:collection;primaryKey"`
	DocID      string `gorm:"column:doc_id;primaryKey"`
	Body       string `gorm:"column:body;not null;default:'{}'"`
	UpdatedAt  int64  `gorm:"column:updated_at;not null;default:0"`
}

func (Document) TableName() string { return "documents" }
