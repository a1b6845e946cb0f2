package extract

// Patient field names, in reporting order.
const (
	FieldName      = "name"
	FieldAge       = "age"
	FieldGender    = "gender"
	FieldPatientID = "patient_id"
	FieldDate      = "date"
)

// PatientFields lists every patient field in reporting order.
var PatientFields = []string{FieldName, FieldAge, FieldGender, FieldPatientID, FieldDate}

// Patient holds the header fields found on a report. Absent fields are left
// at their zero value and omitted from JSON.
type Patient struct {
	Name      string `json:"name,omitempty"`
	Age       *int   `json:"age,omitempty"`
	Gender    string `json:"gender,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Field is one present patient field. Value is a string, or an int for age.
type Field struct {
	Name  string
	Value any
}

// Fields returns the present fields in reporting order.
func (p Patient) Fields() []Field {
	var fields []Field
	add := func(name, v string) {
		if v != "" {
			fields = append(fields, Field{Name: name, Value: v})
		}
	}
	add(FieldName, p.Name)
	if p.Age != nil {
		fields = append(fields, Field{Name: FieldAge, Value: *p.Age})
	}
	add(FieldGender, p.Gender)
	add(FieldPatientID, p.PatientID)
	add(FieldDate, p.Date)
	return fields
}

// Has reports whether field has been set.
func (p Patient) Has(field string) bool {
	switch field {
	case FieldName:
		return p.Name != ""
	case FieldAge:
		return p.Age != nil
	case FieldGender:
		return p.Gender != ""
	case FieldPatientID:
		return p.PatientID != ""
	case FieldDate:
		return p.Date != ""
	}
	return false
}

// Observation is one lab test row. Unit is nil when no known unit appears on
// the line.
type Observation struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Unit       *string `json:"unit"`
	Confidence float64 `json:"confidence"`
}

// Result is the output of a single extraction pass.
type Result struct {
	Patient Patient       `json:"patient"`
	Tests   []Observation `json:"tests"`
}
