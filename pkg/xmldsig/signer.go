package xmldsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"software.sslmate.com/src/go-pkcs12"
)

// Erros específicos
var (
	ErrTargetNotFound = errors.New("nó alvo da assinatura não encontrado ou sem atributo Id")
	ErrUnsupportedKey = errors.New("chave privada do certificado não é RSA")
)

// URIs dos algoritmos exigidos pelo layout da SEFAZ. O par RSA-SHA1/SHA-1 é
// imposto pelo validador do fisco; trocar por algoritmos modernos quebra a
// interoperabilidade.
const (
	canonicalizationAlg = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	signatureAlg        = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	envelopedAlg        = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	digestAlg           = "http://www.w3.org/2000/09/xmldsig#sha1"
	dsigNamespace       = "http://www.w3.org/2000/09/xmldsig#"
)

// Sign aplica uma assinatura digital XML envelopada sobre o nó identificado
// pela tag informada. O nó precisa carregar um atributo Id; a assinatura é
// inserida como irmão imediato do nó assinado, preservando o restante do
// documento.
func Sign(xml string, pfxData []byte, password, targetTag string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xml); err != nil {
		return "", fmt.Errorf("falha ao ler XML para assinatura: %w", err)
	}

	target := doc.FindElement("//" + targetTag)
	if target == nil {
		return "", ErrTargetNotFound
	}
	id := target.SelectAttrValue("Id", "")
	if id == "" {
		return "", ErrTargetNotFound
	}

	privateKey, certificate, _, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return "", fmt.Errorf("falha ao abrir certificado para assinatura: %w", err)
	}
	rsaKey, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return "", ErrUnsupportedKey
	}

	digest, err := digestElement(target)
	if err != nil {
		return "", err
	}

	signedInfo := buildSignedInfo(id, digest)
	signedInfoBytes, err := canonicalize(signedInfo)
	if err != nil {
		return "", err
	}

	signedInfoDigest := sha1.Sum(signedInfoBytes)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, rsaKey, crypto.SHA1, signedInfoDigest[:])
	if err != nil {
		return "", fmt.Errorf("falha ao assinar: %w", err)
	}

	signature := etree.NewElement("Signature")
	signature.CreateAttr("xmlns", dsigNamespace)
	signature.AddChild(signedInfo)
	signature.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(signatureValue))
	keyInfo := signature.CreateElement("KeyInfo")
	x509Data := keyInfo.CreateElement("X509Data")
	x509Data.CreateElement("X509Certificate").SetText(base64.StdEncoding.EncodeToString(certificate.Raw))

	parent := target.Parent()
	parent.InsertChildAt(target.Index()+1, signature)

	return serialize(doc)
}

// digestElement calcula o digest SHA-1 da forma canônica do nó alvo
func digestElement(el *etree.Element) (string, error) {
	data, err := canonicalize(el.Copy())
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

// buildSignedInfo monta o bloco SignedInfo referenciando o Id do nó alvo
func buildSignedInfo(id, digest string) *etree.Element {
	signedInfo := etree.NewElement("SignedInfo")
	signedInfo.CreateAttr("xmlns", dsigNamespace)
	signedInfo.CreateElement("CanonicalizationMethod").CreateAttr("Algorithm", canonicalizationAlg)
	signedInfo.CreateElement("SignatureMethod").CreateAttr("Algorithm", signatureAlg)

	reference := signedInfo.CreateElement("Reference")
	reference.CreateAttr("URI", "#"+id)
	transforms := reference.CreateElement("Transforms")
	transforms.CreateElement("Transform").CreateAttr("Algorithm", envelopedAlg)
	transforms.CreateElement("Transform").CreateAttr("Algorithm", canonicalizationAlg)
	reference.CreateElement("DigestMethod").CreateAttr("Algorithm", digestAlg)
	reference.CreateElement("DigestValue").SetText(digest)

	return signedInfo
}

// canonicalize serializa um elemento na forma canônica (tags fechadas,
// texto e atributos escapados)
func canonicalize(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el)
	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	out, err := doc.WriteToString()
	if err != nil {
		return nil, fmt.Errorf("falha ao canonicalizar XML: %w", err)
	}
	return []byte(out), nil
}

func serialize(doc *etree.Document) (string, error) {
	doc.WriteSettings = etree.WriteSettings{
		CanonicalEndTags: true,
		CanonicalText:    true,
		CanonicalAttrVal: true,
	}
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("falha ao serializar XML assinado: %w", err)
	}
	return out, nil
}
