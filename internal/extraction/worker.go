package extraction

import (
	"encoding/base64"

	"github.com/rotisserie/eris"

	"github.com/sells-group/pim-enrich/internal/model"
)

// WorkerRequest is the JSON body exchanged with an extraction worker. The
// file travels base64-encoded.
type WorkerRequest struct {
	File             string            `json:"file"`
	FileName         string            `json:"fileName"`
	FileType         string            `json:"fileType"`
	ProductUUID      string            `json:"productUuid"`
	ProductData      WorkerProduct     `json:"productData"`
	FamilyAttributes []WorkerAttribute `json:"familyAttributes"`
	PromptID         string            `json:"promptId,omitempty"`
	ExtractionMode   string            `json:"extractionMode,omitempty"`
}

// WorkerProduct is the product context sent to the worker.
type WorkerProduct struct {
	UUID       string       `json:"uuid"`
	Identifier string       `json:"identifier"`
	Family     string       `json:"family"`
	Values     model.Values `json:"values"`
}

// WorkerAttribute is one attribute of the schema sent to the worker.
type WorkerAttribute struct {
	Code        string         `json:"code"`
	Labels      model.Labels   `json:"labels,omitempty"`
	Type        string         `json:"type,omitempty"`
	Localizable bool           `json:"localizable"`
	Scopable    bool           `json:"scopable"`
	Options     []model.Option `json:"options,omitempty"`
}

// WorkerResponse is the worker's reply.
type WorkerResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	Proposals []model.Proposal `json:"proposals,omitempty"`
	Metadata  *WorkerMetadata  `json:"metadata,omitempty"`
}

// WorkerMetadata summarizes an extraction.
type WorkerMetadata struct {
	PromptTemplate      string `json:"promptTemplate"`
	ExtractionMode      string `json:"extractionMode"`
	TotalAttributes     int    `json:"totalAttributes"`
	ExtractedAttributes int    `json:"extractedAttributes"`
}

// NewWorkerRequest encodes req for the wire.
func NewWorkerRequest(req Request) WorkerRequest {
	wr := WorkerRequest{
		File:             req.Document.Base64(),
		FileName:         req.Document.Name,
		FileType:         req.Document.MIMEType,
		PromptID:         req.Template.ID,
		ExtractionMode:   string(req.Mode),
		FamilyAttributes: make([]WorkerAttribute, 0, len(req.Attributes)),
	}
	if req.Product != nil {
		wr.ProductUUID = req.Product.UUID
		wr.ProductData = WorkerProduct{
			UUID:       req.Product.UUID,
			Identifier: req.Product.Identifier,
			Family:     req.Product.Family,
			Values:     req.Product.Values,
		}
	}
	for _, a := range req.Attributes {
		typ := a.SourceType
		if typ == "" {
			typ = string(a.ValueType)
		}
		wr.FamilyAttributes = append(wr.FamilyAttributes, WorkerAttribute{
			Code:        a.Code,
			Labels:      a.Labels,
			Type:        typ,
			Localizable: a.Localizable,
			Scopable:    a.Scopable,
			Options:     a.Options,
		})
	}
	return wr
}

// Decode converts a received worker request back into a Request. The
// template is resolved by the caller from PromptID. The attribute list is
// filtered by the request's extraction mode against the supplied values.
func (wr WorkerRequest) Decode() (Request, error) {
	if wr.File == "" || wr.FamilyAttributes == nil {
		return Request{}, model.Errorf(model.KindInvalidInput,
			"Missing required fields: file, productData, or familyAttributes")
	}
	data, err := base64.StdEncoding.DecodeString(wr.File)
	if err != nil {
		return Request{}, eris.Wrap(model.NewError(model.KindInvalidInput, "The file is not valid base64.", err),
			"extraction: decode worker file")
	}
	product := &model.Product{
		UUID:       wr.ProductUUID,
		Identifier: wr.ProductData.Identifier,
		Family:     wr.ProductData.Family,
		Values:     wr.ProductData.Values,
	}
	if product.UUID == "" {
		product.UUID = wr.ProductData.UUID
	}

	mode := model.ParseExtractionMode(wr.ExtractionMode)
	attrs := make([]model.AttributeDefinition, 0, len(wr.FamilyAttributes))
	for _, a := range wr.FamilyAttributes {
		if a.Code == "" {
			continue
		}
		if mode == model.ModeEmpty && !product.Values.IsEmpty(a.Code) {
			continue
		}
		vt := model.ParseValueType(a.Type)
		if vt == model.ValueTypeOther {
			// Already-normalized type names are accepted as is.
			switch t := model.ValueType(a.Type); t {
			case model.ValueTypeText, model.ValueTypeSingleSelect, model.ValueTypeMultiSelect,
				model.ValueTypeNumeric, model.ValueTypeBoolean:
				vt = t
			}
		}
		attrs = append(attrs, model.AttributeDefinition{
			Code:        a.Code,
			Labels:      a.Labels,
			ValueType:   vt,
			SourceType:  a.Type,
			Localizable: a.Localizable,
			Scopable:    a.Scopable,
			Options:     a.Options,
		})
	}

	return Request{
		Document:   model.NewDocument(wr.FileName, wr.FileType, data),
		Product:    product,
		Attributes: attrs,
		Mode:       mode,
	}, nil
}
