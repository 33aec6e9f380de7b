// Package catalog holds the clinic's fixed service directory.
package catalog

// ServiceCode identifies a clinic service independently of its display name.
type ServiceCode string

const (
	GeneralConsultation ServiceCode = "consulta-general"
	Cardiology          ServiceCode = "cardiologia"
	Pediatrics          ServiceCode = "pediatria"
	Laboratory          ServiceCode = "laboratorio"
	Radiology           ServiceCode = "radiologia"
	Emergency           ServiceCode = "urgencias"
)

// Service pairs a code with its display name.
type Service struct {
	Code ServiceCode `json:"code"`
	Name string      `json:"name"`
}

// ordered as they appear in the appointment form's select box
var services = []Service{
	{Code: GeneralConsultation, Name: "Consulta General"},
	{Code: Cardiology, Name: "Cardiología"},
	{Code: Pediatrics, Name: "Pediatría"},
	{Code: Laboratory, Name: "Laboratorio Clínico"},
	{Code: Radiology, Name: "Radiología"},
	{Code: Emergency, Name: "Urgencias"},
}

var byCode = func() map[ServiceCode]string {
	m := make(map[ServiceCode]string, len(services))
	for _, s := range services {
		m[s.Code] = s.Name
	}
	return m
}()

// Known reports whether the code belongs to the closed set.
func (c ServiceCode) Known() bool {
	_, ok := byCode[c]
	return ok
}

// DisplayName returns the label for a known code, or the code itself.
func (c ServiceCode) DisplayName() string {
	if name, ok := byCode[c]; ok {
		return name
	}
	return string(c)
}

// Directory resolves service codes to display names.
type Directory struct{}

// DisplayNameFor returns the fixed label for code. Unrecognized codes come
// back unchanged; they are accepted and shown verbatim.
func (Directory) DisplayNameFor(code string) string {
	return ServiceCode(code).DisplayName()
}

// Known reports whether code is one of the listed services.
func (Directory) Known(code string) bool {
	return ServiceCode(code).Known()
}

// List returns a copy of the directory in display order.
func (Directory) List() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}
