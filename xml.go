package rtfx

import "encoding/xml"

// Persisted form of a state, bit-compatible with the attribute set consumed
// by project serializers:
//
//	<effect id="..." version="..." active="...">
//	  <parameters>
//	    <parameter name="..." value="..."/>
//	  </parameters>
//	</effect>
type (
	effectElement struct {
		XMLName    xml.Name           `xml:"effect"`
		ID         string             `xml:"id,attr"`
		Version    string             `xml:"version,attr"`
		Active     bool               `xml:"active,attr"`
		Parameters *parametersElement `xml:"parameters"`
	}

	parametersElement struct {
		Parameters []parameterElement `xml:"parameter"`
	}

	parameterElement struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	}
)

// MarshalXML writes the effect element. A state without a plugin writes
// nothing.
func (s *State) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	if s.plugin == nil {
		return nil
	}
	element := effectElement{
		ID:      s.plugin.ID(),
		Version: s.plugin.Version(),
		Active:  s.mainSettings.Settings.Active,
	}
	if parameters := s.plugin.StoreParameters(s.mainSettings.Settings); len(parameters) > 0 {
		element.Parameters = &parametersElement{}
		for _, p := range parameters {
			element.Parameters.Parameters = append(element.Parameters.Parameters,
				parameterElement{Name: p.Name, Value: p.Value})
		}
	}
	return e.Encode(element)
}

// UnmarshalXML reads the effect element, rebinds the plugin through the
// state's registry and replays the persisted parameters. An unknown plugin
// id leaves the state inert but keeps the activation flag.
func (s *State) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var element effectElement
	if err := d.DecodeElement(&element, &start); err != nil {
		return err
	}

	s.plugin = nil
	s.id = ""
	s.mainSettings = SettingsAndCounter{}
	s.mainSettings.Settings.Active = element.Active
	s.bind(element.ID)

	if s.plugin == nil || element.Parameters == nil {
		return nil
	}
	for _, p := range element.Parameters.Parameters {
		if err := s.plugin.LoadParameter(&s.mainSettings.Settings, p.Name, p.Value); err != nil {
			s.logger.Warnf("%v: parameter %v=%v not loaded: %v", s, p.Name, p.Value, err)
		}
	}
	return nil
}
