package extract

// featuresSchema validates the structured fields the model returns for a
// medical device guidance document. Unknown keys are tolerated; the
// flattener decides what survives into the stored record.
const featuresSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "MedicalDeviceFeatures",
  "type": "object",
  "additionalProperties": true,
  "properties": {
    "device_classification": {
      "type": ["string", "null"],
      "description": "Device class (Class I, Class II, Class III)"
    },
    "product_code": {
      "type": ["string", "null"],
      "description": "FDA product code (3-letter code)"
    },
    "device_type": {
      "type": ["string", "null"],
      "description": "Type of medical device"
    },
    "device_category": {
      "type": ["string", "null"],
      "description": "Broad device category"
    },
    "intended_use": {
      "type": ["string", "null"],
      "description": "Intended use statement from the document"
    },
    "regulatory_pathway": {
      "type": ["string", "null"],
      "description": "Regulatory pathway (510(k), PMA, De Novo, Exempt)"
    },
    "premarket_requirements": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Required premarket submissions or studies"
    },
    "standards_referenced": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Referenced standards (ISO, ASTM, IEC)"
    },
    "testing_requirements": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Required testing procedures or protocols"
    },
    "performance_criteria": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Performance standards or criteria mentioned"
    },
    "quality_system_requirements": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Quality system or QSR requirements"
    },
    "labeling_requirements": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Labeling and marking requirements"
    },
    "post_market_requirements": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Post-market surveillance or reporting requirements"
    },
    "submission_requirements": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Required documentation for submission"
    },
    "timeline_information": {
      "type": ["string", "null"],
      "description": "Processing timelines or review periods mentioned"
    },
    "fee_information": {
      "type": ["string", "null"],
      "description": "User fees or payment requirements"
    },
    "risk_classification": {
      "type": ["string", "null"],
      "description": "Risk classification or safety considerations"
    },
    "contraindications": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Contraindications or warnings mentioned"
    },
    "confidence_score": {
      "type": "number",
      "minimum": 0,
      "maximum": 1,
      "description": "Overall confidence score for the extraction"
    },
    "extraction_notes": {
      "type": ["string", "null"],
      "description": "Notes about extraction quality"
    }
  }
}`
